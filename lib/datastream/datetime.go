// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"fmt"
	"time"
)

// unixEpochJulianDay is the Julian day number of 1970-01-01.
const unixEpochJulianDay = 2440588

const millisecondsPerDay = 24 * 60 * 60 * 1000

// InvalidTime is the value Qt writes for a null QTime.
const InvalidTime Time = 0xFFFFFFFF

// Zone is the time-spec byte of a QDateTime.
type Zone uint8

const (
	ZoneLocal  Zone = 0
	ZoneUTC    Zone = 1
	ZoneOffset Zone = 2
)

// Time is a QTime: milliseconds since midnight.
type Time uint32

// TimeOf returns the time of day of t's wall clock.
func TimeOf(t time.Time) Time {
	hour, minute, second := t.Clock()
	milliseconds := ((hour*60+minute)*60+second)*1000 + t.Nanosecond()/int(time.Millisecond)
	return Time(milliseconds)
}

// Duration returns the offset from midnight.
func (t Time) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

func (t Time) String() string {
	if t == InvalidTime {
		return "Time(invalid)"
	}
	duration := t.Duration()
	hours := duration / time.Hour
	minutes := (duration % time.Hour) / time.Minute
	seconds := (duration % time.Minute) / time.Second
	milliseconds := (duration % time.Second) / time.Millisecond
	return fmt.Sprintf("Time(%02d:%02d:%02d.%03d)", hours, minutes, seconds, milliseconds)
}

// DateTime is a QDateTime: a Julian day, milliseconds since midnight of
// that day, and the zone the two are expressed in.
type DateTime struct {
	JulianDay    uint32
	Milliseconds uint32
	Zone         Zone
}

// DateTimeOf converts t to a UTC QDateTime. Sub-millisecond precision
// is truncated.
func DateTimeOf(t time.Time) DateTime {
	t = t.UTC()
	milliseconds := t.UnixMilli()
	days := milliseconds / millisecondsPerDay
	remainder := milliseconds % millisecondsPerDay
	if remainder < 0 {
		days--
		remainder += millisecondsPerDay
	}
	return DateTime{
		JulianDay:    uint32(unixEpochJulianDay + days),
		Milliseconds: uint32(remainder),
		Zone:         ZoneUTC,
	}
}

// Time converts d to a time.Time. Local datetimes are interpreted in
// time.Local. Offset datetimes carry no offset in this stream version
// and are treated as UTC.
func (d DateTime) Time() time.Time {
	location := time.UTC
	if d.Zone == ZoneLocal {
		location = time.Local
	}
	days := int(int64(d.JulianDay) - unixEpochJulianDay)
	return time.Date(1970, time.January, 1+days, 0, 0, 0, int(d.Milliseconds)*int(time.Millisecond), location)
}

func (d DateTime) String() string {
	return "DateTime(" + d.Time().Format(time.RFC3339Nano) + ")"
}
