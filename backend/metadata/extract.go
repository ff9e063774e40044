// Package metadata reads capture provenance (GPS, capture time, device,
// editing software) from the EXIF block embedded in an image.
package metadata

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"

	"vukamap/backend/geo"
)

// CaptureMetadata is the provenance found in one image. Every field is
// optional: most uploads carry no EXIF at all.
type CaptureMetadata struct {
	HasGps      bool            `json:"has_gps"`
	Location    *geo.Coordinate `json:"location,omitempty"`
	TakenAt     *time.Time      `json:"taken_at,omitempty"`
	CameraMake  *string         `json:"camera_make,omitempty"`
	CameraModel *string         `json:"camera_model,omitempty"`
	Software    *string         `json:"software,omitempty"`
}

// Device returns "make model" or an empty string.
func (m CaptureMetadata) Device() string {
	var parts []string
	if m.CameraMake != nil {
		parts = append(parts, *m.CameraMake)
	}
	if m.CameraModel != nil {
		parts = append(parts, *m.CameraModel)
	}
	return strings.Join(parts, " ")
}

// Edited reports whether the image carries an editing-software tag.
func (m CaptureMetadata) Edited() bool {
	return m.Software != nil
}

// Extract never fails. A missing or corrupt EXIF block yields an empty
// CaptureMetadata; partially readable blocks yield what could be read.
func Extract(data []byte) (md CaptureMetadata) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("EXIF decoder panicked, ignoring metadata: %v", r)
			md = CaptureMetadata{}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if x == nil || exif.IsCriticalError(err) {
			log.Debugf("No usable EXIF metadata: %v", err)
			return CaptureMetadata{}
		}
		log.Warnf("EXIF metadata partially readable: %v", err)
	}

	md.Location = location(x)
	md.HasGps = md.Location != nil
	if t, err := x.DateTime(); err == nil && !t.IsZero() {
		md.TakenAt = &t
	}
	md.CameraMake = stringTag(x, exif.Make)
	md.CameraModel = stringTag(x, exif.Model)
	md.Software = stringTag(x, exif.Software)

	log.Infof("EXIF extracted: gps=%v device=%q software=%q", md.HasGps, md.Device(), deref(md.Software))
	return md
}

func location(x *exif.Exif) *geo.Coordinate {
	lat, lng, err := x.LatLong()
	if err != nil {
		return nil
	}
	c := geo.Coordinate{Latitude: lat, Longitude: lng}
	if math.IsNaN(lat) || math.IsNaN(lng) || !c.Valid() {
		log.Warnf("EXIF GPS out of range, ignoring: %s", c)
		return nil
	}
	return &c
}

func stringTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m CaptureMetadata) String() string {
	loc := "none"
	if m.Location != nil {
		loc = m.Location.String()
	}
	return fmt.Sprintf("gps=%s device=%q software=%q", loc, m.Device(), deref(m.Software))
}
