package utils

import (
	"regexp"
	"strings"
)

var (
	reBrackets = regexp.MustCompile(`[\[【].*?[\]】]`)
	reQuality  = regexp.MustCompile(`(?i)\b(1080p|720p|2160p|4k|hdr|bluray|web-dl|webrip)\b`)
	reYear     = regexp.MustCompile(`[(（]((?:19|20)\d{2})[)）]`)
)

// CleanSearchQuery 清理用户粘贴的标题（文件名、带标签的片名），返回查询词和识别出的年份
func CleanSearchQuery(query string) (string, string) {
	if query == "" {
		return "", ""
	}

	var year string
	if m := reYear.FindStringSubmatch(query); m != nil {
		year = m[1]
		query = reYear.ReplaceAllString(query, " ")
	}

	// 【...】 [ ... ] 通常是压制组、分辨率等标签
	query = reBrackets.ReplaceAllString(query, " ")
	query = reQuality.ReplaceAllString(query, " ")

	// 点、下划线当作分隔符
	query = strings.NewReplacer(".", " ", "_", " ").Replace(query)
	return strings.Join(strings.Fields(query), " "), year
}
