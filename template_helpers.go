package portal

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be
// used with a view engine's global-data option for session-aware template
// functionality.
//
// Usage:
//
//	engine := django.New("./views", ".html")
//	for name, fn := range portal.TemplateHelpers(store) {
//	    engine.AddFunc(name, fn)
//	}
//
// In templates, you can then use:
//
//	{% if is_authenticated() %}
//	{% if has_permission("reports:view") %}
//	{% for entry in visible_nav(nav) %}
func TemplateHelpers(store *SessionStore) map[string]any {
	return map[string]any{
		"is_authenticated": func() bool {
			return store.Status() == StatusAuthenticated
		},
		"has_permission": func(permission string) bool {
			return store.HasPermission(permission)
		},
		"has_role": func(role string) bool {
			return store.HasRole(role)
		},
		"session_status": func() string {
			return store.Status()
		},
		TemplateUserKey: func() *UserInfo {
			return store.CurrentUser()
		},
		"visible_nav": func(entries []NavEntry) []NavEntry {
			return VisibleEntries(entries, store)
		},
	}
}
