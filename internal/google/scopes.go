package google

// CalendarScope grants read/write access to the user's calendars, which is
// what inserting an event with a Meet conference requires.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// DefaultOAuthScopes are requested by the consent URL when no scopes are
// configured.
var DefaultOAuthScopes = []string{
	CalendarScope,
}
