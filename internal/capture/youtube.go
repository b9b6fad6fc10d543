package capture

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// IsYouTube reports whether source is a YouTube page rather than a stream.
func IsYouTube(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com"
}

// ResolveYouTubeURL uses yt-dlp to get the direct stream URL from a YouTube link.
func ResolveYouTubeURL(ctx context.Context, youtubeURL string) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", "best[height<=1080]",
		"--no-playlist",
		youtubeURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	return firstURL(output)
}

// firstURL picks the video URL; yt-dlp may print video and audio on separate lines.
func firstURL(output []byte) (string, error) {
	raw := strings.TrimSpace(string(output))
	first := strings.TrimSpace(strings.SplitN(raw, "\n", 2)[0])
	if first == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}
	return first, nil
}
