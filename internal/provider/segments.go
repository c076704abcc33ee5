package provider

import "strings"

const (
	gsm7SingleLimit = 160
	gsm7PartLimit   = 153
	ucs2SingleLimit = 70
	ucs2PartLimit   = 67
)

const (
	gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsm7Extension = "^{}\\[~]|€\f"
)

// Segments estimates how many SMS segments a carrier bills for message.
func Segments(message string) int {
	if message == "" {
		return 0
	}

	if septets, ok := gsm7Length(message); ok {
		return segmentCount(septets, gsm7SingleLimit, gsm7PartLimit)
	}
	return segmentCount(ucs2Length(message), ucs2SingleLimit, ucs2PartLimit)
}

func gsm7Length(message string) (int, bool) {
	septets := 0
	for _, r := range message {
		switch {
		case strings.ContainsRune(gsm7Basic, r):
			septets++
		case strings.ContainsRune(gsm7Extension, r):
			septets += 2
		default:
			return 0, false
		}
	}
	return septets, true
}

func ucs2Length(message string) int {
	units := 0
	for _, r := range message {
		if r > 0xFFFF {
			units += 2
			continue
		}
		units++
	}
	return units
}

func segmentCount(length, single, part int) int {
	if length <= single {
		return 1
	}
	return (length + part - 1) / part
}
