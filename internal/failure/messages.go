package failure

import "strings"

type locale string

const (
	localeChinese locale = "zh"
	localeEnglish locale = "en"
)

var messageTable = map[locale]map[Category]string{
	localeChinese: {
		StartRejected:      "语音识别正忙或暂不可用，请稍后重试",
		PermissionDenied:   "未获得麦克风权限，请在系统设置中允许访问麦克风",
		NetworkUnavailable: "无法连接语音识别服务，请检查网络",
		NoSpeechDetected:   "没有检测到语音，请靠近麦克风再试一次",
		Unclassified:       "语音识别出错，请重试",
	},
	localeEnglish: {
		StartRejected:      "Speech recognition is busy or unavailable; try again shortly",
		PermissionDenied:   "Microphone permission was not granted",
		NetworkUnavailable: "The speech recognition service is unreachable; check the network",
		NoSpeechDetected:   "No speech was detected; move closer to the microphone and retry",
		Unclassified:       "Speech recognition failed; please retry",
	},
}

// Message returns the human-readable message for category in the given locale tag.
// Unknown locales fall back to Chinese, the engine's fixed recognition locale.
func Message(category Category, tag string) string {
	table := messageTable[resolveLocale(tag)]
	if msg, ok := table[category]; ok {
		return msg
	}
	return table[Unclassified]
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeChinese
}
