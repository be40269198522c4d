package recordings

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ProbeMedia runs ffprobe over a finished file and extracts the
// metadata stored with the history document.
func ProbeMedia(ctx context.Context, ffprobePath, filePath string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(err, "probe media")
	}

	var result struct {
		Format  map[string]interface{} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			Width      int    `json:"width,omitempty"`
			Height     int    `json:"height,omitempty"`
			RFrameRate string `json:"r_frame_rate,omitempty"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return nil, errors.Wrap(err, "parse probe output")
	}

	info := &MediaInfo{}

	if fi, err := os.Stat(filePath); err == nil {
		info.FileSize = fi.Size()
	}

	if v, ok := result.Format["duration"]; ok {
		if str, ok := v.(string); ok {
			if d, err := strconv.ParseFloat(str, 64); err == nil {
				info.Duration = d
			}
		}
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			if stream.RFrameRate != "" {
				parts := strings.Split(stream.RFrameRate, "/")
				if len(parts) == 2 {
					num, errN := strconv.ParseFloat(parts[0], 64)
					den, errD := strconv.ParseFloat(parts[1], 64)
					if errN == nil && errD == nil && den > 0 {
						info.FrameRate = num / den
					}
				}
			}
		case "audio":
			info.AudioCodec = stream.CodecName
		}
	}
	return info, nil
}
