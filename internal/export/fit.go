package export

import (
	"bytes"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/shared/geo"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
)

// Constant for converting degrees to semicircles (FIT standard).
const degreesToSemicircles = 2147483648.0 / 180.0

// FIT renders the session as a FIT activity file: file id, per-fix
// records, a timer-stop event, then lap and session summaries.
func FIT(s tracking.Session) ([]byte, error) {
	fit := proto.FIT{}

	fileIdMesg := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		Product:      0,
		SerialNumber: 1,
		TimeCreated:  s.StartedAt,
	}
	fit.Messages = append(fit.Messages, fileIdMesg.ToMesg(nil))

	var distM float64
	var prev *tracking.LocationPoint
	hrIdx := 0
	for i := range s.Route {
		p := s.Route[i]
		if prev != nil {
			distM += geo.HaversineKm(prev.Lat, prev.Lng, p.Lat, p.Lng) * 1000
		}
		prev = &s.Route[i]

		record := &mesgdef.Record{
			Timestamp:    p.RecordedAt,
			PositionLat:  int32(p.Lat * degreesToSemicircles),
			PositionLong: int32(p.Lng * degreesToSemicircles),
			Distance:     uint32(distM * 100), // cm
		}
		if p.AltitudeM != nil {
			// Scale 5, offset 500: allows altitudes below sea level.
			record.EnhancedAltitude = uint32((*p.AltitudeM + 500.0) * 5.0)
		}
		// Attach the latest heart-rate sample at or before this fix.
		for hrIdx < len(s.HeartRate) && !s.HeartRate[hrIdx].RecordedAt.After(p.RecordedAt) {
			record.HeartRate = uint8(s.HeartRate[hrIdx].BPM)
			hrIdx++
		}
		fit.Messages = append(fit.Messages, record.ToMesg(nil))
	}

	elapsedMs := uint32(s.ElapsedSeconds) * 1000

	eventMesg := mesgdef.Event{
		Timestamp: s.CompletedAt,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	fit.Messages = append(fit.Messages, eventMesg.ToMesg(nil))

	lapMesg := mesgdef.Lap{
		Timestamp:        s.CompletedAt,
		StartTime:        s.StartedAt,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   elapsedMs,
		TotalDistance:    uint32(distM * 100),
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
	}
	fit.Messages = append(fit.Messages, lapMesg.ToMesg(nil))

	sessionMesg := mesgdef.Session{
		Timestamp:        s.CompletedAt,
		StartTime:        s.StartedAt,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   elapsedMs,
		TotalDistance:    uint32(distM * 100),
		TotalCalories:    uint16(s.Metrics.Calories),
		TotalAscent:      uint16(s.Metrics.ElevationGainM),
		TotalDescent:     uint16(s.Metrics.ElevationLossM),
		AvgHeartRate:     uint8(s.Metrics.AvgHeartRate),
		MaxHeartRate:     uint8(s.Metrics.MaxHeartRate),
		Sport:            typedef.SportHiking,
		SubSport:         typedef.SubSportGeneric,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}
	fit.Messages = append(fit.Messages, sessionMesg.ToMesg(nil))

	var buf bytes.Buffer
	enc := encoder.New(&buf)
	if err := enc.Encode(&fit); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
