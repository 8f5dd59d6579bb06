package dashboard

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"signalboard/internal/domain"
	"signalboard/internal/render"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatBytes formats a payload size with KB/MB suffixes.
func FormatBytes(n int) string {
	v := float64(n)
	switch {
	case v >= 1<<20:
		return fmt.Sprintf("%.1f MB", v/(1<<20))
	case v >= 1<<10:
		return fmt.Sprintf("%.1f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatMetric formats a metric value. Volatility and drawdown arrive as
// fractions and are shown as percentages.
func FormatMetric(k domain.MetricKey, v float64) string {
	switch k {
	case domain.MetricVolatility, domain.MetricMaxDrawdown:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

// DescribeImage summarises an artifact as "640x480 png, 12.3 KB". The
// dimensions are omitted when the header cannot be decoded.
func DescribeImage(img render.Image) string {
	size := FormatBytes(len(img.Data))
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return fmt.Sprintf("%s, %s", img.MIME, size)
	}
	return fmt.Sprintf("%dx%d %s, %s", cfg.Width, cfg.Height, format, size)
}

// PlainText renders a view without styling, one line per element.
func PlainText(v render.View) string {
	var b strings.Builder
	switch v.Kind {
	case render.KindLoading:
		b.WriteString(render.LoadingText + "\n")
	case render.KindPrompt:
		if v.Selected == "" {
			fmt.Fprintf(&b, "%s\n", v.Prompt)
		} else {
			fmt.Fprintf(&b, "%s (no analysis for %s)\n", v.Prompt, v.Selected)
		}
	case render.KindGraph:
		fmt.Fprintf(&b, "%s\n", v.Heading)
		for _, img := range v.Images {
			fmt.Fprintf(&b, "  %-18s %s\n", img.Caption, DescribeImage(img))
		}
		for _, mt := range v.Metrics {
			fmt.Fprintf(&b, "  %-18s %s\n", mt.Label, FormatMetric(mt.Key, mt.Value))
		}
	}
	return b.String()
}

func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}
