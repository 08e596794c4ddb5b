package domain

import (
	"net/url"
	"sort"
	"strings"
)

// Platform идентифицирует поддерживаемый медиа-сервис.
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformInstagram   Platform = "instagram"
	PlatformReddit      Platform = "reddit"
	PlatformRutube      Platform = "rutube"
	PlatformTikTok      Platform = "tiktok"
	PlatformUnsupported Platform = "unsupported"
)

// Короткие домены, которые не содержат имени сервиса и потому
// распознаются только точным совпадением.
var priorityDomains = map[string]Platform{
	"youtu.be":      PlatformYouTube,
	"rutu.be":       PlatformRutube,
	"instagr.am":    PlatformInstagram,
	"vm.tiktok.com": PlatformTikTok,
	"vt.tiktok.com": PlatformTikTok,
}

var domainPatterns = map[Platform][]string{
	PlatformYouTube:   {"youtube.com", "youtu.be"},
	PlatformInstagram: {"instagram.com", "instagr.am"},
	PlatformReddit:    {"reddit.com"},
	PlatformRutube:    {"rutube.ru", "rutu.be"},
	PlatformTikTok:    {"tiktok.com"},
}

var heuristicRules = map[string]Platform{
	"youtube":   PlatformYouTube,
	"youtu":     PlatformYouTube,
	"instagram": PlatformInstagram,
	"reddit":    PlatformReddit,
	"rutube":    PlatformRutube,
	"tiktok":    PlatformTikTok,
}

// MatchDomain определяет сервис по доменному имени: сначала точное
// совпадение, затем суффиксы известных доменов, затем эвристика по
// ключевым словам.
func MatchDomain(domain string) Platform {
	d := strings.ToLower(strings.TrimSpace(domain))
	if p, ok := priorityDomains[d]; ok {
		return p
	}
	for platform, patterns := range domainPatterns {
		for _, pattern := range patterns {
			if d == pattern || strings.HasSuffix(d, "."+pattern) {
				return platform
			}
		}
	}
	for keyword, platform := range heuristicRules {
		if strings.Contains(d, keyword) {
			return platform
		}
	}
	return PlatformUnsupported
}

// PlatformFromURL разбирает ссылку и классифицирует её сервис.
// Второй результат false, если строка не является http(s)-ссылкой.
func PlatformFromURL(raw string) (Platform, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return PlatformUnsupported, false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return PlatformUnsupported, false
	}
	if parsed.Host == "" {
		return PlatformUnsupported, false
	}
	return MatchDomain(parsed.Hostname()), true
}

// SupportedPlatforms возвращает отсортированный список сервисов.
func SupportedPlatforms() []Platform {
	platforms := make([]Platform, 0, len(domainPatterns))
	for p := range domainPatterns {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// SupportedDomains возвращает отсортированный список известных доменов.
func SupportedDomains() []string {
	seen := make(map[string]struct{})
	for _, patterns := range domainPatterns {
		for _, d := range patterns {
			seen[d] = struct{}{}
		}
	}
	for d := range priorityDomains {
		seen[d] = struct{}{}
	}
	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
