// porter - A Telegram <-> OneBot (QQ/WeChat) relay bridge.
// Copyright (C) 2025 The Porter Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package porter

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/porter/media"
)

// uploadedInfo describes a remote media segment after it has been uploaded
// to Telegram.
type uploadedInfo struct {
	file     tg.InputFileClass
	name     string
	size     int
	mimeType string
	width    int
	height   int
}

// isSticker reports whether an inbound segment should be relayed as a
// Telegram sticker. Market faces always are; plain images only when they
// carry the QQ animated sticker markers.
func isSticker(seg onebot.Segment) bool {
	switch data := seg.Data.(type) {
	case *onebot.MfaceData:
		return true
	case *onebot.ImageData:
		return data.EmojiID != "" || data.Summary == "[动画表情]"
	}
	return false
}

// uploadSegment downloads a media segment from its endpoint, converts it to
// a format Telegram accepts and uploads the result.
func (br *Bridge) uploadSegment(ctx context.Context, endpoint onebot.Endpoint, seg onebot.Segment) (*uploadedInfo, error) {
	name, data, err := br.downloadSegment(ctx, endpoint, seg)
	if err != nil {
		return nil, err
	}
	log := zerolog.Ctx(ctx)

	mtype := mimetype.Detect(data)
	if isSticker(seg) {
		// Telegram wants webm for animated stickers and webp for static
		// ones. Conversion failures fall back to the original payload.
		if mtype.Is("image/gif") {
			if webm, err := media.GIFToWebM(ctx, data); err != nil {
				log.Warn().Err(err).Msg("Failed to convert gif to webm")
			} else {
				data = webm
				mtype = mimetype.Detect(data)
			}
		} else {
			if webp, err := media.ToWebP(data); err != nil {
				log.Warn().Err(err).Msg("Failed to convert image to webp")
			} else {
				data = webp
				mtype = mimetype.Detect(data)
			}
		}
	} else if seg.Type == "record" && endpoint.Platform == onebot.PlatformQQ {
		// QQ records are fetched as wav, Telegram voice notes need opus.
		if ogg, err := media.WAVToOgg(ctx, data); err != nil {
			log.Warn().Err(err).Msg("Failed to convert wav to ogg")
		} else {
			data = ogg
			mtype = mimetype.Detect(data)
		}
	}

	if ext := strings.TrimPrefix(mtype.Extension(), "."); ext != "" {
		name = media.FixExt(name, ext)
	}

	file, err := br.uploader.FromBytes(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	info := &uploadedInfo{
		file:     file,
		name:     name,
		size:     len(data),
		mimeType: mtype.String(),
	}
	if seg.Type == "image" {
		if width, height, err := media.ImageSize(data); err == nil {
			info.width, info.height = width, height
		}
	}
	return info, nil
}

// downloadSegment pulls a media segment's payload from its endpoint. Sticker
// emojis carry a direct URL which is preferred over the file API.
func (br *Bridge) downloadSegment(ctx context.Context, endpoint onebot.Endpoint, seg onebot.Segment) (string, []byte, error) {
	switch data := seg.Data.(type) {
	case *onebot.ImageData:
		if data.EmojiID != "" && strings.HasPrefix(data.URL, "http") {
			return br.fetchFile(ctx, data.URL)
		}
		info, err := br.getImage(ctx, endpoint, data.File, data.File, data.EmojiID)
		if err != nil {
			return "", nil, err
		}
		return decodeFileInfo(info)
	case *onebot.MfaceData:
		if strings.HasPrefix(data.URL, "http") {
			return br.fetchFile(ctx, data.URL)
		}
		info, err := br.getImage(ctx, endpoint, data.EmojiID, data.EmojiID, data.EmojiID)
		if err != nil {
			return "", nil, err
		}
		return decodeFileInfo(info)
	case *onebot.RecordData:
		// NapCat and LLOneBot encode ogg with vorbis rather than opus,
		// which Telegram rejects, so QQ records are fetched as wav.
		outFormat := "ogg"
		if endpoint.Platform == onebot.PlatformQQ {
			outFormat = "wav"
		}
		info, err := br.getRecord(ctx, endpoint, data.File, outFormat)
		if err != nil {
			return "", nil, err
		}
		return decodeFileInfo(info)
	case *onebot.VideoData:
		info, err := br.getFile(ctx, endpoint, data.File, data.File)
		if err != nil {
			return "", nil, err
		}
		return decodeFileInfo(info)
	case *onebot.FileData:
		info, err := br.getFile(ctx, endpoint, data.File, data.File)
		if err != nil {
			return "", nil, err
		}
		return decodeFileInfo(info)
	}
	return "", nil, fmt.Errorf("failed to download %s segment", seg.Type)
}

// decodeFileInfo extracts the inline payload of a file API response.
// Adapters running next to this process always answer with base64.
func decodeFileInfo(info *onebot.FileInfo) (string, []byte, error) {
	if info.Base64 == "" {
		return "", nil, fmt.Errorf("file info for %q has no base64 payload", info.FileName)
	}
	data, err := base64.StdEncoding.DecodeString(info.Base64)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	return info.FileName, data, nil
}

// fetchFile downloads a file over plain HTTP. QQ sticker CDNs reject
// requests without a browser user agent.
func (br *Bridge) fetchFile(ctx context.Context, rawURL string) (string, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := br.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("failed to fetch file: status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return media.Filename(resp.Header, u), data, nil
}

// base64URI encodes a payload the way OneBot file segments expect.
func base64URI(data []byte) string {
	return "base64://" + base64.StdEncoding.EncodeToString(data)
}
