package utils

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// GeotagStatus reports the outcome of a geotag attempt. The branches are
// deliberately explicit so callers can distinguish "input had no usable
// coordinates" from "the image fought back".
type GeotagStatus int

const (
	GeotagWritten GeotagStatus = iota
	GeotagSkippedInvalidInput
	GeotagFailed
)

func (s GeotagStatus) String() string {
	switch s {
	case GeotagWritten:
		return "written"
	case GeotagSkippedInvalidInput:
		return "skipped"
	default:
		return "failed"
	}
}

// Tag ID of the Exif sub-IFD pointer in the root IFD.
const exifSubIfdTagID = 0x8769

// WriteGeotag embeds GPS EXIF data into a JPEG and returns the new bytes.
// Unparseable latitude/longitude strings return the input untouched with
// GeotagSkippedInvalidInput; geotagging is optional and never blocks the
// pipeline. Existing EXIF is kept where loadable, except the legacy Exif
// sub-IFD which may carry offsets invalidated by earlier re-encoding.
// The GPS block is spliced into the segment list, so pixel content is
// preserved exactly.
func WriteGeotag(jpegData []byte, latStr, lonStr string) (out []byte, status GeotagStatus) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if latErr != nil || lonErr != nil {
		log.Printf("[Geotag] Skipping EXIF: invalid lat/lon %q %q", latStr, lonStr)
		return jpegData, GeotagSkippedInvalidInput
	}

	out, err := writeGPSBlock(jpegData, lat, lon)
	if err != nil {
		log.Printf("[Geotag] EXIF write failed: %v", err)
		return jpegData, GeotagFailed
	}

	return out, GeotagWritten
}

func writeGPSBlock(jpegData []byte, lat, lon float64) (out []byte, err error) {
	// The EXIF library reports some failures by panicking.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("recovered from exif panic: %v", r)
			}
		}
	}()

	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(jpegData)
	if err != nil {
		return nil, err
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// Absent or corrupt EXIF: start from an empty block.
		im, imErr := exifcommon.NewIfdMappingWithStandard()
		if imErr != nil {
			return nil, imErr
		}
		ti := exif.NewTagIndex()
		rootIb = exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	} else {
		// Untrusted legacy block, drop it.
		rootIb.DeleteAll(exifSubIfdTagID)
	}

	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return nil, err
	}

	if err := gpsIb.SetStandardWithName("GPSVersionID", []byte{2, 3, 0, 0}); err != nil {
		return nil, err
	}
	if err := gpsIb.SetStandardWithName("GPSLatitudeRef", LatitudeRef(lat)); err != nil {
		return nil, err
	}
	if err := gpsIb.SetStandardWithName("GPSLatitude", DegreesToDMS(lat).ExifRationals()); err != nil {
		return nil, err
	}
	if err := gpsIb.SetStandardWithName("GPSLongitudeRef", LongitudeRef(lon)); err != nil {
		return nil, err
	}
	if err := gpsIb.SetStandardWithName("GPSLongitude", DegreesToDMS(lon).ExifRationals()); err != nil {
		return nil, err
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ExifRationals converts the triple into the unsigned 32-bit rational pairs
// the GPS IFD stores.
func (d DMS) ExifRationals() []exifcommon.Rational {
	return []exifcommon.Rational{
		toExifRational(d.Degrees),
		toExifRational(d.Minutes),
		toExifRational(d.Seconds),
	}
}

func toExifRational(r Rational) exifcommon.Rational {
	num, den := r.Num, r.Den
	if num < 0 {
		num = -num // GPS rationals are magnitudes; sign lives in the ref tag
	}
	return exifcommon.Rational{Numerator: uint32(num), Denominator: uint32(den)}
}
