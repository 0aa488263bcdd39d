// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry implements the fixed-width ASCII frame sent from the
// payload to the ground station.
//
// Frame layout (comma delimited, newline terminated):
//
//	datetime     16  Tyymmddhhmmss.ss   T = provenance (G gps, S system clock)
//	latitude      8  DDmm.mmO
//	longitude     9  DDDmm.mmO
//	altitude      8  aaaaa.aa
//	nsats         2  nn
//	groundspeed   6  kkk.kk
//	quality_flag  1  n
//	itemp         7  sttt.tt
//	etemp         7  sttt.tt
//	cputemp       7  sttt.tt
//	humidity     11  hh.hhhhhhhh
//
// 82 field bytes + 10 delimiters = 92 payload bytes, 93 with the newline.
// A field that cannot carry its value is filled with a sentinel run of the
// same width: X missing, G above upper bound, L below lower bound, F format
// overflow.
package telemetry

const (
	// Delimiter separates fields within a frame.
	Delimiter = ","
	// Terminator ends every frame.
	Terminator = "\n"
	// DateTimeWidth is the width of the leading datetime field.
	DateTimeWidth = 16
	// NumFields is the number of fields in a frame.
	NumFields = 11
)

// Field indexes in protocol order.
const (
	FieldDateTime = iota
	FieldLatitude
	FieldLongitude
	FieldAltitude
	FieldNumSats
	FieldGroundSpeed
	FieldQuality
	FieldInternalTemp
	FieldExternalTemp
	FieldCPUTemp
	FieldHumidity
)

var (
	LatitudeSpec     = FieldSpec{Name: "latitude", IntDigits: 4, FracDigits: 2, Lower: 0, Upper: 9000, Suffix: 1}
	LongitudeSpec    = FieldSpec{Name: "longitude", IntDigits: 5, FracDigits: 2, Lower: 0, Upper: 18000, Suffix: 1}
	AltitudeSpec     = FieldSpec{Name: "altitude", IntDigits: 5, FracDigits: 2, Lower: 0, Upper: 99999.99}
	NumSatsSpec      = FieldSpec{Name: "nsats", IntDigits: 2, Lower: 0, Upper: 99}
	GroundSpeedSpec  = FieldSpec{Name: "groundspeed", IntDigits: 3, FracDigits: 2, Lower: 0, Upper: 999.99}
	QualitySpec      = FieldSpec{Name: "quality_flag", IntDigits: 1, Lower: 0, Upper: 9}
	InternalTempSpec = FieldSpec{Name: "itemp", IntDigits: 3, FracDigits: 2, Signed: true, Lower: -999.99, Upper: 999.99}
	ExternalTempSpec = FieldSpec{Name: "etemp", IntDigits: 3, FracDigits: 2, Signed: true, Lower: -999.99, Upper: 999.99}
	CPUTempSpec      = FieldSpec{Name: "cputemp", IntDigits: 3, FracDigits: 2, Signed: true, Lower: -999.99, Upper: 999.99}
	HumiditySpec     = FieldSpec{Name: "humidity", IntDigits: 2, FracDigits: 8, Lower: 0, Upper: 99.99999999}
)

// fieldNames lists every field in protocol order.
var fieldNames = [NumFields]string{
	"datetime",
	LatitudeSpec.Name,
	LongitudeSpec.Name,
	AltitudeSpec.Name,
	NumSatsSpec.Name,
	GroundSpeedSpec.Name,
	QualitySpec.Name,
	InternalTempSpec.Name,
	ExternalTempSpec.Name,
	CPUTempSpec.Name,
	HumiditySpec.Name,
}

// FieldName returns the protocol name of field i.
func FieldName(i int) string {
	if i < 0 || i >= NumFields {
		return "unknown"
	}
	return fieldNames[i]
}

// FieldWidths returns the width of every field in protocol order.
func FieldWidths() [NumFields]int {
	return [NumFields]int{
		DateTimeWidth,
		LatitudeSpec.Width(),
		LongitudeSpec.Width(),
		AltitudeSpec.Width(),
		NumSatsSpec.Width(),
		GroundSpeedSpec.Width(),
		QualitySpec.Width(),
		InternalTempSpec.Width(),
		ExternalTempSpec.Width(),
		CPUTempSpec.Width(),
		HumiditySpec.Width(),
	}
}

// PayloadLength is the frame length without the terminator.
var PayloadLength = payloadLength()

// FrameLength is the total byte length of every frame.
var FrameLength = PayloadLength + len(Terminator)

func payloadLength() int {
	n := len(Delimiter) * (NumFields - 1)
	for _, w := range FieldWidths() {
		n += w
	}
	return n
}
