// Package icon converts raster icon assets into the Windows ICO format
// required by the packaging tool.
package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// ConvertedName is the temporary ICO filename written next to the script.
const ConvertedName = "icon_converted.ico"

// icoSizes are the resolutions embedded in the generated icon.
var icoSizes = []int{16, 32, 48, 64, 128, 256}

// Preprocessor prepares icon assets for a build job. Status lines are
// reported through the injected callback.
type Preprocessor struct {
	status func(string)
}

// NewPreprocessor creates a preprocessor reporting through status. A nil
// status is allowed and discards messages.
func NewPreprocessor(status func(string)) *Preprocessor {
	if status == nil {
		status = func(string) {}
	}
	return &Preprocessor{status: status}
}

// Prepare resolves an icon path for the tool invocation. An .ico path is
// returned unchanged; a .png is converted to a multi-resolution ICO in
// workDir. Any other extension or conversion failure returns "" — the job
// proceeds without an icon.
func (p *Preprocessor) Prepare(iconPath, workDir string) string {
	lower := strings.ToLower(iconPath)
	switch {
	case strings.HasSuffix(lower, ".ico"):
		return iconPath
	case strings.HasSuffix(lower, ".png"):
		p.status("PNG icon detected, converting to ICO format...")
		icoPath := filepath.Join(workDir, ConvertedName)
		if err := convertPNG(iconPath, icoPath); err != nil {
			p.status(fmt.Sprintf("PNG to ICO failed: %v", err))
			return ""
		}
		p.status("The icon conversion was successful.")
		return icoPath
	default:
		p.status("Unsupported icon format, only .png and .ico formats are supported.")
		return ""
	}
}

// convertPNG decodes a PNG and writes an ICO containing PNG-compressed
// entries at each of the standard resolutions.
func convertPNG(pngPath, icoPath string) error {
	f, err := os.Open(pngPath)
	if err != nil {
		return fmt.Errorf("failed to open icon: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode PNG: %w", err)
	}

	entries := make([][]byte, 0, len(icoSizes))
	for _, size := range icoSizes {
		data, err := encodeScaledPNG(src, size)
		if err != nil {
			return fmt.Errorf("failed to encode %dpx entry: %w", size, err)
		}
		entries = append(entries, data)
	}

	out, err := os.Create(icoPath)
	if err != nil {
		return fmt.Errorf("failed to create ICO file: %w", err)
	}
	defer out.Close()

	if err := writeICO(out, entries); err != nil {
		return fmt.Errorf("failed to write ICO file: %w", err)
	}
	return nil
}

// encodeScaledPNG resamples src to a size x size square and returns it
// PNG-encoded. ICO files may embed PNG data directly for each entry.
func encodeScaledPNG(src image.Image, size int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// icoDirEntry is the on-disk ICONDIRENTRY layout.
type icoDirEntry struct {
	Width      uint8
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	Offset     uint32
}

// writeICO assembles the ICONDIR header, directory entries, and image
// payloads. Entry order mirrors icoSizes.
func writeICO(out *os.File, entries [][]byte) error {
	const headerSize = 6
	const entrySize = 16

	// ICONDIR: reserved, type 1 (icon), entry count.
	header := []uint16{0, 1, uint16(len(entries))}
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return err
	}

	offset := uint32(headerSize + entrySize*len(entries))
	for i, data := range entries {
		size := icoSizes[i]
		dim := uint8(size)
		if size >= 256 {
			dim = 0 // 256 is encoded as zero
		}
		entry := icoDirEntry{
			Width:      dim,
			Height:     dim,
			Planes:     1,
			BitCount:   32,
			BytesInRes: uint32(len(data)),
			Offset:     offset,
		}
		if err := binary.Write(out, binary.LittleEndian, entry); err != nil {
			return err
		}
		offset += uint32(len(data))
	}

	for _, data := range entries {
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}
