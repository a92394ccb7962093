// Package calendar creates Google Meet meetings by inserting Google Calendar
// events with a conference create request.
//
// Every call asks the TokenSource for a token, which for the Google
// authenticator means a refresh against the token endpoint, and builds a
// short-lived Calendar service on top of it.
//
// Example usage:
//
//	meet, err := calendar.NewClient(authenticator, calendar.WithCalendarID("primary"))
//	if err != nil {
//	    return err
//	}
//	res, err := meet.CreateMeeting(ctx, meeting.Request{
//	    Topic:           "Standup",
//	    StartTime:       start,
//	    DurationMinutes: 30,
//	})
package calendar
