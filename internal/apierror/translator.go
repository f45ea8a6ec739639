package apierror

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Translator maps heterogeneous failure bodies into a Detail. It never
// decides control flow, it only produces presentation content.
type Translator struct {
	messages map[string]string
}

func NewTranslator(messages map[string]string) *Translator {
	if messages == nil {
		messages = DefaultMessages
	}
	return &Translator{messages: messages}
}

// Translate accepts the structured payload, the legacy {error: string}
// shape, a {detail: string} or bare string body, or no body at all.
// status is 0 when the request never got a response.
func (t *Translator) Translate(status int, body []byte) Detail {
	fallbackKey := statusKey(status)
	d := Detail{Key: fallbackKey}

	trimmed := strings.TrimSpace(string(body))

	switch {
	case trimmed == "":
		// network failure or empty body: title from status only

	case gjson.Valid(trimmed) && gjson.Parse(trimmed).IsObject():
		root := gjson.Parse(trimmed)
		t.fromObject(root, &d)

	case gjson.Valid(trimmed) && gjson.Parse(trimmed).Type == gjson.String:
		d.Details = gjson.Parse(trimmed).String()

	default:
		d.Details = trimmed
	}

	if d.Title == "" {
		d.Title = t.message(d.Key, nil)
	}
	if d.Title == "" {
		d.Title = t.message(fallbackKey, nil)
	}
	if d.Title == "" {
		d.Title = "Something went wrong."
	}

	return d
}

// TranslateKey builds a Detail for a locally detected failure
func (t *Translator) TranslateKey(key string, params map[string]any, suggestions ...string) Detail {
	d := Detail{Key: key, Title: t.message(key, params)}
	if d.Title == "" {
		d.Title = t.message(KeyInternal, nil)
	}
	for _, s := range suggestions {
		d.Suggestions = append(d.Suggestions, Suggestion{Key: s, Message: t.message(s, params)})
	}
	return d
}

func (t *Translator) fromObject(root gjson.Result, d *Detail) {
	if key := root.Get("errorKey").String(); key != "" {
		d.Key = key
		params := paramsOf(root.Get("params"))
		if msg := t.message(key, params); msg != "" {
			d.Title = msg
		} else {
			d.Title = root.Get("errorMessage").String()
		}
		d.Details = detailsOf(root.Get("details"))
		d.Suggestions = t.suggestionsOf(root.Get("suggestions"))
		return
	}

	if legacy := root.Get("error"); legacy.Type == gjson.String && legacy.String() != "" {
		d.Title = legacy.String()
		d.Details = detailsOf(root.Get("details"))
		return
	}

	if detail := root.Get("detail"); detail.Exists() {
		d.Details = detailsOf(detail)
		return
	}

	if msg := root.Get("errorMessage").String(); msg != "" {
		d.Title = msg
	}
}

func (t *Translator) suggestionsOf(arr gjson.Result) []Suggestion {
	if !arr.IsArray() {
		return nil
	}

	var out []Suggestion
	arr.ForEach(func(_, item gjson.Result) bool {
		s := Suggestion{
			Key:    item.Get("key").String(),
			Params: paramsOf(item.Get("params")),
		}
		s.Message = t.message(s.Key, s.Params)
		if s.Message == "" {
			s.Message = interpolate(item.Get("message").String(), s.Params)
		}
		if s.Message != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func (t *Translator) message(key string, params map[string]any) string {
	if key == "" {
		return ""
	}
	tmpl, ok := t.messages[key]
	if !ok {
		return ""
	}
	return interpolate(tmpl, params)
}

func paramsOf(r gjson.Result) map[string]any {
	if !r.IsObject() {
		return nil
	}
	params, _ := r.Value().(map[string]any)
	return params
}

func detailsOf(r gjson.Result) string {
	switch {
	case !r.Exists():
		return ""
	case r.Type == gjson.String:
		return r.String()
	default:
		return r.Raw
	}
}
