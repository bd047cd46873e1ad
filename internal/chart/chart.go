// Package chart builds the mermaid xychart descriptor for the balance
// history and encodes it for the mermaid.ink rendering service.
package chart

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultTitle is the fixed chart title used for the balance trend chart.
const DefaultTitle = "模拟盘余额"

// DefaultTheme is the render theme appended to image URLs.
const DefaultTheme = "dark"

// Descriptor builds a mermaid xychart line-chart descriptor from a balance
// series. Each value is rounded to the nearest integer. The function is
// total: an empty series yields a descriptor with an empty value list, and
// callers decide whether an empty chart is worth rendering.
func Descriptor(title string, values []float64) string {
	rounded := make([]string, len(values))
	for i, v := range values {
		rounded[i] = strconv.FormatInt(int64(math.Round(v)), 10)
	}

	return fmt.Sprintf("xychart\n    title \"%s\"\n    line [%s]", title, strings.Join(rounded, ","))
}

// Encode converts a descriptor to URL-safe base64. Padding is kept so that
// Decode(Encode(x)) == x byte for byte.
func Encode(descriptor string) string {
	return base64.URLEncoding.EncodeToString([]byte(descriptor))
}

// Decode reverses Encode.
func Decode(encoded string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid chart encoding: %w", err)
	}
	return string(data), nil
}

// ImageURL builds the rendering-service URL for a descriptor, e.g.
// https://mermaid.ink/img/<encoded>?theme=dark.
func ImageURL(baseURL, descriptor, theme string) string {
	if theme == "" {
		theme = DefaultTheme
	}
	return fmt.Sprintf("%s/img/%s?theme=%s", strings.TrimRight(baseURL, "/"), Encode(descriptor), theme)
}
