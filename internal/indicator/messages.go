package indicator

import "strings"

type locale string

const (
	localeChinese locale = "zh"
	localeEnglish locale = "en"
)

type messages struct {
	listening string
	errorText string
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeChinese
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		return messages{
			listening: "Listening…",
			errorText: "Speech recognition error",
		}
	default:
		return messages{
			listening: "正在聆听…",
			errorText: "语音识别出错",
		}
	}
}
