package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

// LargestPhotoSize picks the biggest representation Telegram offers for a
// photo, which is the one worth relaying.
func LargestPhotoSize(sizes []tg.PhotoSizeClass) (width, height int, largest tg.PhotoSizeClass) {
	var maxSize int
	for _, s := range sizes {
		var currentSize int
		switch size := s.(type) {
		case *tg.PhotoSize:
			currentSize = size.GetSize()
		case *tg.PhotoCachedSize:
			currentSize = max(size.GetW(), size.GetH())
		case *tg.PhotoSizeProgressive:
			currentSize = max(size.GetW(), size.GetH())
		case *tg.PhotoPathSize:
			currentSize = len(size.GetBytes())
		case *tg.PhotoStrippedSize:
			currentSize = len(size.GetBytes())
		}

		if currentSize > maxSize {
			maxSize = currentSize
			largest = s
			type dimensionable interface {
				GetW() int
				GetH() int
			}
			if d, ok := s.(dimensionable); ok {
				width = d.GetW()
				height = d.GetH()
			}
		}
	}
	return
}

// DownloadPhoto fetches the largest size of a Telegram photo.
func DownloadPhoto(ctx context.Context, client downloader.Client, photo *tg.Photo) (data []byte, width, height int, mimeType string, err error) {
	var largest tg.PhotoSizeClass
	width, height, largest = LargestPhotoSize(photo.GetSizes())
	if largest == nil {
		return nil, 0, 0, "", fmt.Errorf("photo %d has no sizes", photo.GetID())
	}
	data, mimeType, err = downloadLocation(ctx, client, &tg.InputPhotoFileLocation{
		ID:            photo.GetID(),
		AccessHash:    photo.GetAccessHash(),
		FileReference: photo.GetFileReference(),
		ThumbSize:     largest.GetType(),
	})
	return
}

// DownloadDocument fetches the full contents of a Telegram document.
func DownloadDocument(ctx context.Context, client downloader.Client, document *tg.Document) ([]byte, error) {
	data, _, err := downloadLocation(ctx, client, &tg.InputDocumentFileLocation{
		ID:            document.GetID(),
		AccessHash:    document.GetAccessHash(),
		FileReference: document.GetFileReference(),
	})
	return data, err
}

func downloadLocation(ctx context.Context, client downloader.Client, file tg.InputFileLocationClass) (data []byte, mimeType string, err error) {
	var buf bytes.Buffer
	storageFileType, err := downloader.NewDownloader().Download(client, file).Stream(ctx, &buf)
	if err != nil {
		return nil, "", err
	}
	switch storageFileType.(type) {
	case *tg.StorageFileJpeg:
		mimeType = "image/jpeg"
	case *tg.StorageFileGif:
		mimeType = "image/gif"
	case *tg.StorageFilePng:
		mimeType = "image/png"
	case *tg.StorageFilePdf:
		mimeType = "application/pdf"
	case *tg.StorageFileMp3:
		mimeType = "audio/mp3"
	case *tg.StorageFileMov:
		mimeType = "video/quicktime"
	case *tg.StorageFileMp4:
		mimeType = "video/mp4"
	case *tg.StorageFileWebp:
		mimeType = "image/webp"
	default:
		mimeType = http.DetectContentType(buf.Bytes())
	}
	return buf.Bytes(), mimeType, nil
}
