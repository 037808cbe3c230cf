package ollama

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPreference is the family order used to pick a model for command
// generation.
var DefaultPreference = []string{"deepseek-r1", "qwen2.5", "llama3.2", "llama3.1", "mistral"}

// FallbackModel is used when nothing is installed.
const FallbackModel = "llama3.2:1b"

// BestModel returns the first installed model whose name starts with a
// preferred family, else the first installed model, else FallbackModel.
func BestModel(installed []Model, preferred []string) string {
	for _, fam := range preferred {
		for _, m := range installed {
			if strings.HasPrefix(m.Name, fam) {
				return m.Name
			}
		}
	}
	if len(installed) > 0 {
		return installed[0].Name
	}
	return FallbackModel
}

const ffmpegPrompt = `You are an FFmpeg command line expert. Your task is to generate a precise, valid FFmpeg command.

RULES:
1. Output ONLY the ffmpeg command, nothing else - no explanations, no markdown, no code blocks
2. Use {input} as placeholder for input file path
3. Use {output} as placeholder for output file path
4. Always use proper codec settings for quality
5. Handle edge cases like spaces in filenames

Generate the command for this request:`

// SuggestFFmpeg asks the best installed model for an ffmpeg command line
// matching request. A list failure is not fatal; the fallback model is
// tried instead.
func (c *Client) SuggestFFmpeg(ctx context.Context, request string) (cmd, model string, err error) {
	installed, lerr := c.List(ctx)
	if lerr != nil {
		installed = nil
	}
	model = BestModel(installed, DefaultPreference)
	resp, err := c.Generate(ctx, model, ffmpegPrompt+"\n\n"+request)
	if err != nil {
		return "", model, fmt.Errorf("suggest ffmpeg command: %w", err)
	}
	return ExtractCommand(resp), model, nil
}

// ExtractCommand strips markdown fences and returns the first line that
// starts with ffmpeg or ffprobe, else the first line.
func ExtractCommand(resp string) string {
	r := strings.NewReplacer("```bash", "", "```shell", "", "```", "")
	cleaned := strings.TrimSpace(r.Replace(strings.TrimSpace(resp)))
	lines := strings.Split(cleaned, "\n")
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "ffmpeg") || strings.HasPrefix(l, "ffprobe") {
			return l
		}
	}
	return strings.TrimSpace(lines[0])
}
