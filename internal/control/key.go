package control

import "net/url"

// Key identifies a run: the action name, followed by its parameters sorted
// by name, for example "eat?size=big".
func Key(action string, params map[string]string) string {
	if len(params) == 0 {
		return action
	}
	v := make(url.Values, len(params))
	for k, p := range params {
		v.Set(k, p)
	}
	return action + "?" + v.Encode()
}
