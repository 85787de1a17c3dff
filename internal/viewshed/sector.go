package viewshed

import "fmt"

// Sector is the compass octant half a target cell falls in relative to the
// viewpoint. North is toward decreasing row index.
type Sector int

const (
	SectorN Sector = iota
	SectorNNE
	SectorNE
	SectorENE
	SectorE
	SectorESE
	SectorSE
	SectorSSE
	SectorS
	SectorSSW
	SectorSW
	SectorWSW
	SectorW
	SectorWNW
	SectorNW
	SectorNNW
	numSectors
)

var sectorNames = [numSectors]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

func (s Sector) String() string {
	if s < 0 || s >= numSectors {
		return fmt.Sprintf("Sector(%d)", int(s))
	}
	return sectorNames[s]
}

// bracket holds the offsets, relative to the target cell, of the two ring
// d-1 cells whose LOS values are interpolated. adj is the cell along the
// sector axis, off the one on the diagonal; they coincide on exact axes and
// diagonals.
type bracket struct {
	adjRow, adjCol int
	offRow, offCol int
}

var bracketTable = [numSectors]bracket{
	SectorW:   {0, 1, 0, 1},
	SectorWNW: {0, 1, 1, 1},
	SectorNW:  {1, 1, 1, 1},
	SectorNNW: {1, 0, 1, 1},
	SectorN:   {1, 0, 1, 0},
	SectorNNE: {1, 0, 1, -1},
	SectorNE:  {1, -1, 1, -1},
	SectorENE: {0, -1, 1, -1},
	SectorE:   {0, -1, 0, -1},
	SectorESE: {0, -1, -1, -1},
	SectorSE:  {-1, -1, -1, -1},
	SectorSSE: {-1, 0, -1, -1},
	SectorS:   {-1, 0, -1, 0},
	SectorSSW: {-1, 0, -1, 1},
	SectorSW:  {-1, 1, -1, 1},
	SectorWSW: {0, 1, -1, 1},
}

// orientationCode packs the sign and diagonal relations of (relCol, relRow)
// into the bit pattern the sector table is keyed on.
func orientationCode(relCol, relRow int) int {
	code := 0
	switch {
	case relCol > 0:
		code += 0x1
	case relCol == 0:
		code += 0x2
	}
	switch {
	case relRow > 0:
		code += 0x10
	case relRow == 0:
		code += 0x20
	}
	switch {
	case relCol == relRow:
		code += 0x1200
	case relCol == -relRow:
		code += 0x2100
	case relCol != 0 && relRow != 0:
		if relRow > relCol {
			code += 0x100
		}
		if relRow > -relCol {
			code += 0x1000
		}
	}
	return code
}

func sectorFromCode(code int) (Sector, error) {
	switch code {
	case 0x0020:
		return SectorW, nil
	case 0x0100:
		return SectorWNW, nil
	case 0x1200:
		return SectorNW, nil
	case 0x0000:
		return SectorNNW, nil
	case 0x0002:
		return SectorN, nil
	case 0x0001:
		return SectorNNE, nil
	case 0x2101:
		return SectorNE, nil
	case 0x1001:
		return SectorENE, nil
	case 0x0021:
		return SectorE, nil
	case 0x1011:
		return SectorESE, nil
	case 0x1211:
		return SectorSE, nil
	case 0x1111:
		return SectorSSE, nil
	case 0x0012:
		return SectorS, nil
	case 0x1110:
		return SectorSSW, nil
	case 0x2110:
		return SectorSW, nil
	case 0x0110:
		return SectorWSW, nil
	}
	return 0, fmt.Errorf("code %#06x: %w", code, ErrUnknownSector)
}

// classify returns the sector of a cell displaced (relRow, relCol) from the
// viewpoint. The viewpoint itself has no sector.
func classify(relRow, relCol int) (Sector, error) {
	return sectorFromCode(orientationCode(relCol, relRow))
}
