// Package calendar renders events as iCalendar (RFC 5545) documents.
package calendar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/emersion/go-ical"
)

const productID = "-//event-planner//EN"

// ContentType is the media type of Encode's output.
const ContentType = "text/calendar; charset=utf-8"

// Encode returns a VCALENDAR holding a single VEVENT for ev. now stamps
// DTSTAMP.
func Encode(ev *model.Event, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent(ev, now))

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func vevent(ev *model.Event, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.ID+"@event-planner")
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.StartTime.UTC())
	if ev.EndTime != nil {
		ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndTime.UTC())
	}
	ve.Props.SetText(ical.PropCategories, string(ev.Category))

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if loc := location(ev); loc != "" {
		ve.Props.SetText(ical.PropLocation, loc)
	}

	// GEO is "lat;lon" and must not be text-escaped.
	geo := ical.NewProp(ical.PropGeo)
	geo.Value = formatCoord(ev.Location.Latitude()) + ";" + formatCoord(ev.Location.Longitude())
	ve.Props.Set(geo)

	if ev.CreatedBy.Email != "" {
		org := ical.NewProp(ical.PropOrganizer)
		org.Value = "mailto:" + ev.CreatedBy.Email
		if ev.CreatedBy.DisplayName != "" {
			org.Params.Set(ical.ParamCommonName, ev.CreatedBy.DisplayName)
		}
		ve.Props.Set(org)
	}

	status := "CONFIRMED"
	if ev.IsCancelled {
		status = "CANCELLED"
	}
	ve.Props.SetText(ical.PropStatus, status)
	ve.Props.SetDateTime(ical.PropLastModified, ev.UpdatedAt.UTC())
	return ve
}

func location(ev *model.Event) string {
	parts := make([]string, 0, 2)
	if ev.Address != "" {
		parts = append(parts, ev.Address)
	}
	if ev.City != "" {
		parts = append(parts, ev.City)
	}
	return strings.Join(parts, ", ")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
