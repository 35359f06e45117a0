package utils

// Server-side messages for user-visible errors. Keys not present in a locale
// fall back to English, then to the key itself.
var translations = map[string]map[string]string{
	"en": {
		"health.ok":             "ok",
		"survey.not_found":      "Survey not found",
		"survey.no_questions":   "This survey doesn't have any questions yet.",
		"survey.confirm_delete": "Deleting a survey requires confirmation",
		"session.not_found":     "Session not found",
		"session.read_only":     "Preview mode is read-only",
		"session.closed":        "This survey has already been submitted",
		"auth.required":         "Please sign in first",
		"form.invalid":          "Please correct the highlighted fields",
	},
	"zh": {
		"health.ok":             "好的",
		"survey.not_found":      "问卷不存在",
		"survey.no_questions":   "该问卷还没有任何问题。",
		"survey.confirm_delete": "删除问卷需要确认",
		"session.not_found":     "答题会话不存在",
		"session.read_only":     "预览模式为只读",
		"session.closed":        "该问卷已提交",
		"auth.required":         "请先登录",
		"form.invalid":          "请修正标出的字段",
	},
}

// T returns the translated string for key in locale.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations[DefaultLocale][key]; ok {
		return v
	}
	return key
}
