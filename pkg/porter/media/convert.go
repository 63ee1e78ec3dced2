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

// Package media converts relayed files between the formats Telegram and the
// remote platforms expect, derives upload filenames, and downloads Telegram
// media.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.mau.fi/util/ffmpeg"
	"go.mau.fi/util/gnuzip"
	"go.mau.fi/util/lottie"
	"go.mau.fi/webp"
	_ "golang.org/x/image/webp"
)

// GIF renders produced for the remote side are capped at 256px wide.
const (
	gifSide = 256
	gifFPS  = "15"
)

var (
	ErrFFmpegNotFound = errors.New("ffmpeg is not installed")
	ErrLottieNotFound = errors.New("lottie renderer is not installed")
)

// GIFToWebM re-encodes a GIF as a VP9 webm clip that Telegram accepts as a
// video sticker. Stickers are capped at 512px and three seconds.
func GIFToWebM(ctx context.Context, data []byte) ([]byte, error) {
	if !ffmpeg.Supported() {
		return nil, ErrFFmpegNotFound
	}
	return ffmpeg.ConvertBytes(ctx, data, ".webm", nil, []string{
		"-r", "30",
		"-t", "2.99",
		"-an",
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuva420p",
		"-vf", "scale=512:512:force_original_aspect_ratio=decrease",
		"-b:v", "400K",
		"-f", "webm",
	}, "image/gif")
}

// WAVToOgg re-encodes a PCM voice recording as opus so Telegram renders it
// as a voice note.
func WAVToOgg(ctx context.Context, data []byte) ([]byte, error) {
	if !ffmpeg.Supported() {
		return nil, ErrFFmpegNotFound
	}
	return ffmpeg.ConvertBytes(ctx, data, ".ogg", nil, []string{
		"-c:a", "libopus",
		"-b:a", "24K",
		"-f", "ogg",
	}, "audio/wav")
}

// VideoToGIF flattens a short MP4 animation into a GIF with a reduced
// palette, which is what the remote platforms expect for animations.
func VideoToGIF(ctx context.Context, data []byte) ([]byte, error) {
	if !ffmpeg.Supported() {
		return nil, ErrFFmpegNotFound
	}
	return ffmpeg.ConvertBytes(ctx, data, ".gif", nil, []string{
		"-vf", "fps=15,scale=256:-1:flags=lanczos,split[s0][s1];[s0]palettegen=max_colors=64[p];[s1][p]paletteuse=dither=sierra2_4a",
		"-f", "gif",
		"-loop", "0",
	}, "video/mp4")
}

// WebMToGIF flattens a webm video sticker into a GIF, keying out the white
// background the transparent frames land on.
func WebMToGIF(ctx context.Context, data []byte) ([]byte, error) {
	if !ffmpeg.Supported() {
		return nil, ErrFFmpegNotFound
	}
	return ffmpeg.ConvertBytes(ctx, data, ".gif", nil, []string{
		"-filter_complex", "[0:v]fps=10,scale=256:-1:flags=lanczos,colorkey=0xffffff:0.01:0.0,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
		"-f", "gif",
		"-loop", "0",
	}, "video/webm")
}

// TGSToGIF renders a gzipped lottie sticker to a GIF.
func TGSToGIF(ctx context.Context, data []byte) ([]byte, error) {
	if !lottie.Supported() {
		return nil, ErrLottieNotFound
	}
	raw, err := gnuzip.MaybeGUnzip(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress sticker: %w", err)
	}
	var buf bytes.Buffer
	err = lottie.Convert(ctx, bytes.NewReader(raw), "", &buf, "gif", gifSide, gifSide, gifFPS)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToWebP re-encodes a static image as webp, the format Telegram wants for
// image stickers.
func ToWebP(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err = webp.Encode(&buf, img, &webp.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// ImageSize reports the pixel dimensions of an encoded image.
func ImageSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
