package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "expected" or "key").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var messages = map[string]map[string]string{
	"en": {
		"invalid_type":               "invalid type",
		"required":                   "field required",
		"unknown_key":                "unknown key",
		"duplicate_key":              "duplicate key",
		"too_small":                  "too small",
		"too_big":                    "too big",
		"too_short":                  "too short",
		"too_long":                   "too long",
		"pattern":                    "does not match the pattern",
		"invalid_enum":               "not an allowed value",
		"invalid_format":             "invalid format",
		"union_no_match":             "matches no alternative",
		"parse_error":                "parse error",
		"overflow":                   "out of range",
		"truncated":                  "truncated",
		"constraint":                 "constraint violated",
		"business_rule":              "business rule violated",
		"cannot_parse_value":         "value cannot be decoded",
		"assign_beyond_simple_value": "parent already holds a plain value",
	},
	"ja": {
		"invalid_type":               "型が不正です",
		"required":                   "必須プロパティが不足しています",
		"unknown_key":                "未知のキーです",
		"duplicate_key":              "キーが重複しています",
		"too_small":                  "小さすぎます",
		"too_big":                    "大きすぎます",
		"too_short":                  "短すぎます",
		"too_long":                   "長すぎます",
		"pattern":                    "パターンに一致しません",
		"invalid_enum":               "許可されていない値です",
		"invalid_format":             "形式が不正です",
		"union_no_match":             "いずれの候補にも一致しません",
		"parse_error":                "解析エラー",
		"overflow":                   "範囲外の値です",
		"truncated":                  "打ち切られました",
		"constraint":                 "制約に違反しています",
		"business_rule":              "業務ルールに違反しています",
		"cannot_parse_value":         "値を解析できません",
		"assign_beyond_simple_value": "親の位置に単純な値が既に設定されています",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := messages[t.lang][code]
	if !ok {
		return code
	}
	if k := data["expected"]; k != "" && code == "invalid_type" {
		if t.lang == "ja" {
			return msg + " (期待: " + k + ")"
		}
		return msg + " (expected " + k + ")"
	}
	return msg
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
