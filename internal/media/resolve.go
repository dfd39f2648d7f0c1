// Package media decides how a product's media is shown: an embedded player, a
// plain video element, an image, or the placeholder image.
package media

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindYouTube     Kind = "youtube"
	KindStreamable  Kind = "streamable"
	KindTikTok      Kind = "tiktok"
	KindDirectVideo Kind = "directVideo"
	KindImage       Kind = "image"
	KindPlaceholder Kind = "placeholder"
)

const DefaultPlaceholderURL = "https://placehold.co/600x400/cccccc/333333?text=Sin+Imagen"

type Media struct {
	Kind Kind
	// EmbedURL is set for the iframe kinds.
	EmbedURL string
	// SourceURL is the video, image or placeholder address for the other kinds.
	SourceURL string
}

// Embedded reports whether the media renders as an iframe player.
func (m Media) Embedded() bool {
	return m.EmbedURL != ""
}

var (
	youTubePattern    = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com|youtu\.be)/(?:watch\?v=|embed/|v/|shorts/|)([\w-]{11})`)
	streamablePattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?streamable\.com/(?:e/)?([\w-]+)`)
	tikTokPattern     = regexp.MustCompile(`(?:https?://)?(?:www\.)?tiktok\.com/@[\w.-]+/video/(\d+)`)
)

// Resolver resolves media with a configurable placeholder.
type Resolver struct {
	Placeholder string
}

func NewResolver(placeholder string) Resolver {
	if placeholder == "" {
		placeholder = DefaultPlaceholderURL
	}
	return Resolver{Placeholder: placeholder}
}

// Resolve picks the first match in priority order: YouTube, Streamable, TikTok,
// any other video URL, the image, the placeholder.
func (r Resolver) Resolve(videoURL, imageURL string) Media {
	videoURL = strings.TrimSpace(videoURL)
	imageURL = strings.TrimSpace(imageURL)

	if videoURL != "" {
		if id := YouTubeID(videoURL); id != "" {
			return Media{
				Kind:     KindYouTube,
				EmbedURL: "https://www.youtube.com/embed/" + id + "?autoplay=0&controls=1&mute=1&loop=1&playlist=" + id,
			}
		}
		if m := streamablePattern.FindStringSubmatch(videoURL); m != nil {
			return Media{
				Kind:     KindStreamable,
				EmbedURL: "https://streamable.com/e/" + m[1] + "?autoplay=0&controls=1&muted=1&loop=0",
			}
		}
		if m := tikTokPattern.FindStringSubmatch(videoURL); m != nil {
			return Media{
				Kind:     KindTikTok,
				EmbedURL: "https://www.tiktok.com/embed/v2/" + m[1],
			}
		}
		return Media{Kind: KindDirectVideo, SourceURL: videoURL}
	}

	if imageURL != "" {
		return Media{Kind: KindImage, SourceURL: imageURL}
	}
	placeholder := r.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholderURL
	}
	return Media{Kind: KindPlaceholder, SourceURL: placeholder}
}

// Resolve uses the default placeholder.
func Resolve(videoURL, imageURL string) Media {
	return NewResolver("").Resolve(videoURL, imageURL)
}

// YouTubeID extracts the 11-character video id, or "" when videoURL is not a YouTube link.
func YouTubeID(videoURL string) string {
	m := youTubePattern.FindStringSubmatch(videoURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ImageOrPlaceholder is used where only a still image fits, e.g. category cards.
func (r Resolver) ImageOrPlaceholder(imageURL string) string {
	if strings.TrimSpace(imageURL) != "" {
		return imageURL
	}
	if r.Placeholder == "" {
		return DefaultPlaceholderURL
	}
	return r.Placeholder
}
