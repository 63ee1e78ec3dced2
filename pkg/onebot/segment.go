package onebot

import (
	"encoding/json"
	"fmt"
)

// Segment is one piece of a OneBot message. The wire form is an envelope
// tagged by "type" with the variant payload under "data".
type Segment struct {
	Type string
	Data SegmentData
}

// SegmentData is implemented by every segment payload variant.
type SegmentData interface {
	segmentType() string
}

type TextData struct {
	Text string `json:"text"`
}

type FaceData struct {
	ID ID `json:"id"`
}

// MfaceData is a QQ market face (bought sticker).
type MfaceData struct {
	EmojiID string `json:"emoji_id"`
	URL     string `json:"url,omitempty"`
}

type ImageData struct {
	File    string `json:"file"`
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
	EmojiID string `json:"emoji_id,omitempty"`
}

type RecordData struct {
	File string `json:"file"`
	Name string `json:"name,omitempty"`
}

type VideoData struct {
	File string `json:"file"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type FileData struct {
	File string `json:"file"`
	Name string `json:"name,omitempty"`
}

type AtData struct {
	QQ ID `json:"qq"`
}

type RPSData struct{}

type DiceData struct{}

type ShakeData struct{}

type PokeData struct {
	Type ID     `json:"type"`
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
}

type AnonymousData struct{}

type ShareData struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
}

type ContactData struct {
	Type string `json:"type"`
	ID   ID     `json:"id"`
}

type LocationData struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
}

type MusicData struct {
	Type    string `json:"type"`
	ID      ID     `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Audio   string `json:"audio,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
}

type ReplyData struct {
	ID ID `json:"id"`
}

type ForwardData struct {
	ID ID `json:"id"`
}

type NodeData struct {
	ID       ID        `json:"id,omitempty"`
	UserID   ID        `json:"user_id,omitempty"`
	Nickname string    `json:"nickname,omitempty"`
	Content  []Segment `json:"content,omitempty"`
}

type XMLData struct {
	Data string `json:"data"`
}

type JSONData struct {
	Data string `json:"data"`
}

// RawData carries segment variants this package does not model. The payload
// is kept verbatim so the segment survives a round trip.
type RawData struct {
	Raw json.RawMessage
}

func (TextData) segmentType() string      { return "text" }
func (FaceData) segmentType() string      { return "face" }
func (MfaceData) segmentType() string     { return "mface" }
func (ImageData) segmentType() string     { return "image" }
func (RecordData) segmentType() string    { return "record" }
func (VideoData) segmentType() string     { return "video" }
func (FileData) segmentType() string      { return "file" }
func (AtData) segmentType() string        { return "at" }
func (RPSData) segmentType() string       { return "rps" }
func (DiceData) segmentType() string      { return "dice" }
func (ShakeData) segmentType() string     { return "shake" }
func (PokeData) segmentType() string      { return "poke" }
func (AnonymousData) segmentType() string { return "anonymous" }
func (ShareData) segmentType() string     { return "share" }
func (ContactData) segmentType() string   { return "contact" }
func (LocationData) segmentType() string  { return "location" }
func (MusicData) segmentType() string     { return "music" }
func (ReplyData) segmentType() string     { return "reply" }
func (ForwardData) segmentType() string   { return "forward" }
func (NodeData) segmentType() string      { return "node" }
func (XMLData) segmentType() string       { return "xml" }
func (JSONData) segmentType() string      { return "json" }
func (RawData) segmentType() string       { return "" }

type segmentEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var env segmentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	s.Type = env.Type
	data := env.Data
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	var payload SegmentData
	switch env.Type {
	case "text":
		payload = new(TextData)
	case "face":
		payload = new(FaceData)
	case "mface":
		payload = new(MfaceData)
	case "image":
		payload = new(ImageData)
	case "record":
		payload = new(RecordData)
	case "video":
		payload = new(VideoData)
	case "file":
		payload = new(FileData)
	case "at":
		payload = new(AtData)
	case "rps":
		payload = new(RPSData)
	case "dice":
		payload = new(DiceData)
	case "shake":
		payload = new(ShakeData)
	case "poke":
		payload = new(PokeData)
	case "anonymous":
		payload = new(AnonymousData)
	case "share":
		payload = new(ShareData)
	case "contact":
		payload = new(ContactData)
	case "location":
		payload = new(LocationData)
	case "music":
		payload = new(MusicData)
	case "reply":
		payload = new(ReplyData)
	case "forward":
		payload = new(ForwardData)
	case "node":
		payload = new(NodeData)
	case "xml":
		payload = new(XMLData)
	case "json":
		payload = new(JSONData)
	default:
		s.Data = &RawData{Raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("decoding %s segment: %w", env.Type, err)
	}
	s.Data = payload
	return nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	var data any = s.Data
	if raw, ok := s.Data.(*RawData); ok {
		data = raw.Raw
	} else if s.Data == nil {
		data = struct{}{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: s.Type, Data: data})
}

// Fallback renders the plain-text stand-in used when a segment cannot be
// represented natively on the other side.
func (s Segment) Fallback() string {
	switch d := s.Data.(type) {
	case *TextData:
		return d.Text
	case *FaceData:
		return fmt.Sprintf("/[Face%s]", d.ID)
	case *MfaceData:
		return "[表情]"
	case *ImageData:
		return "[图片]"
	case *RecordData:
		return "[语音]"
	case *VideoData:
		return "[视频]"
	case *FileData:
		return "[文件]"
	case *AtData:
		return "@" + string(d.QQ)
	case *RPSData:
		return "[猜拳]"
	case *DiceData:
		return "[掷骰子]"
	case *ShakeData:
		return "[窗口抖动]"
	case *PokeData:
		return "[戳一戳]"
	case *AnonymousData:
		return "[匿名]"
	case *ShareData:
		return fmt.Sprintf("[%s,%s]", d.Title, d.URL)
	case *ContactData:
		return "[推荐]"
	case *LocationData:
		return "[位置]"
	case *MusicData:
		return "[音乐]"
	case *ReplyData:
		return "[回复]"
	case *ForwardData:
		return "[合并转发]"
	case *NodeData:
		return "[合并转发节点]"
	case *XMLData:
		return "[XML]"
	case *JSONData:
		return "[JSON]"
	default:
		return "[" + s.Type + "]"
	}
}

// Outgoing segment constructors.

func Text(text string) Segment {
	return Segment{Type: "text", Data: &TextData{Text: text}}
}

func Image(file, name string) Segment {
	return Segment{Type: "image", Data: &ImageData{File: file, Name: name}}
}

func Record(file, name string) Segment {
	return Segment{Type: "record", Data: &RecordData{File: file, Name: name}}
}

func Video(file, name string) Segment {
	return Segment{Type: "video", Data: &VideoData{File: file, Name: name}}
}

func File(file, name string) Segment {
	return Segment{Type: "file", Data: &FileData{File: file, Name: name}}
}

func Reply(id ID) Segment {
	return Segment{Type: "reply", Data: &ReplyData{ID: id}}
}

func Location(lat, lon float64, title, content string) Segment {
	return Segment{Type: "location", Data: &LocationData{Lat: lat, Lon: lon, Title: title, Content: content}}
}

func JSONCard(data string) Segment {
	return Segment{Type: "json", Data: &JSONData{Data: data}}
}
