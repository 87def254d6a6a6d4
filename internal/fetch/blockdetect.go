package fetch

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// bodyMarkers maps lowercase body substrings to the block they indicate.
// Checked in order; the first hit wins.
var bodyMarkers = []struct {
	marker string
	block  BlockType
}{
	{"checking your browser", BlockCloudflare},
	{"cf-browser-verification", BlockCloudflare},
	{"attention required! | cloudflare", BlockCloudflare},
	{"recaptcha", BlockCaptcha},
	{"hcaptcha", BlockCaptcha},
	{"solve the captcha", BlockCaptcha},
	{"request unsuccessful. incapsula", BlockCaptcha},
}

// DetectBlock checks an HTTP response for signs of anti-bot protection.
// Blocked fetches are treated as transient so the retry budget applies
// before the page is skipped.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if (resp.StatusCode == 403 || resp.StatusCode == 503) && cloudflareHeaders(resp.Header) {
		return true, BlockCloudflare
	}

	lower := strings.ToLower(string(body))
	for _, m := range bodyMarkers {
		if strings.Contains(lower, m.marker) {
			return true, m.block
		}
	}

	// JS-only shell: a near-empty document that bounces non-JS clients.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

func cloudflareHeaders(h http.Header) bool {
	return h.Get("cf-ray") != "" ||
		h.Get("cf-cache-status") != "" ||
		h.Get("server") == "cloudflare"
}
