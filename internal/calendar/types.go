package calendar

import (
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/officebot/internal/meeting"
)

// dateTimeLayout renders times in UTC with a literal Z suffix.
const dateTimeLayout = "2006-01-02T15:04:05Z"

// buildEvent maps a meeting request to an event asking Calendar to create a
// Meet conference. requestID must be unique per insert.
func buildEvent(req meeting.Request, requestID string) *calendar.Event {
	start := req.StartTime.UTC()
	end := req.End().UTC()

	return &calendar.Event{
		Summary: req.Topic,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(dateTimeLayout),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(dateTimeLayout),
			TimeZone: "UTC",
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: requestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}
}

// joinLink prefers the video entry point of the conference, then the legacy
// hangout link, then the event page.
func joinLink(ev *calendar.Event) string {
	if ev == nil {
		return ""
	}
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	return ev.HtmlLink
}
