package hid

// Report descriptor parsing. The descriptor is a byte stream of items
// (HID 1.11 section 6.2.2); this file implements the minimal walk needed
// for enumeration: sizing items, extracting top-level usage pairs, and
// detecting Report ID items.

// Item key commands (key byte with the size bits masked off).
const (
	itemUsagePage     = 0x04 // Global
	itemUsage         = 0x08 // Local
	itemInput         = 0x80 // Main
	itemReportID      = 0x84 // Global
	itemOutput        = 0x90 // Main
	itemCollection    = 0xa0 // Main
	itemFeature       = 0xb0 // Main
	itemEndCollection = 0xc0 // Main
)

// hidItemSize sizes the item at pos. For a Short Item the bottom two bits
// of the key encode the data length (code 3 means 4 bytes) and the key
// itself is one byte. A key with the top nibble set is a Long Item
// (section 6.2.2.3): the following byte holds the data length and the key
// spans three bytes. A Long Item whose length byte lies past the end of
// the descriptor is malformed and reported as !ok.
func hidItemSize(desc []byte, pos int) (dataLen, keySize int, ok bool) {
	key := desc[pos]

	if key&0xf0 == 0xf0 {
		if pos+1 < len(desc) {
			return int(desc[pos+1]), 3, true
		}
		return 0, 0, false
	}

	sizeCode := int(key & 0x3)
	if sizeCode == 3 {
		sizeCode = 4
	}
	return sizeCode, 1, true
}

// hidItemValue reads the little-endian data bytes of the item at pos.
// Items whose data would run past the end of the descriptor yield zero.
func hidItemValue(desc []byte, pos, dataLen int) uint32 {
	if pos+dataLen >= len(desc) {
		return 0
	}

	switch dataLen {
	case 1:
		return uint32(desc[pos+1])
	case 2:
		return uint32(desc[pos+2])<<8 | uint32(desc[pos+1])
	case 4:
		return uint32(desc[pos+4])<<24 | uint32(desc[pos+3])<<16 |
			uint32(desc[pos+2])<<8 | uint32(desc[pos+1])
	default:
		return 0
	}
}

// UsagePair is a top-level usage page and usage extracted from a report
// descriptor.
type UsagePair struct {
	UsagePage uint16
	Usage     uint16
}

type usageStatus int

const (
	usagePairFound usageStatus = iota
	usageExhausted
	usageMalformed
)

// usageIterator walks a report descriptor emitting one UsagePair per
// top-level collection. Usage Page is a Global item and persists across
// pairs; Usage is a Local item and must reappear before each Collection.
type usageIterator struct {
	desc      []byte
	pos       int
	usagePage uint16
	usage     uint16
}

// next advances to the next usage pair. It returns usageExhausted once
// the descriptor is consumed and usageMalformed when an item cannot be
// sized; the cursor always rests just past the last item consumed, so a
// subsequent call resumes where this one stopped.
func (it *usageIterator) next() (UsagePair, usageStatus) {
	// A descriptor with no top-level collection can still carry a valid
	// pair, but only on the first pass from the start.
	// https://docs.microsoft.com/en-us/windows-hardware/drivers/hid/top-level-collections
	initial := it.pos == 0
	usageFound := false
	pairReady := false

	for it.pos < len(it.desc) {
		key := it.desc[it.pos]
		keyCmd := key & 0xfc

		dataLen, keySize, ok := hidItemSize(it.desc, it.pos)
		if !ok {
			return UsagePair{}, usageMalformed
		}

		switch keyCmd {
		case itemUsagePage:
			it.usagePage = uint16(hidItemValue(it.desc, it.pos, dataLen))
		case itemUsage:
			it.usage = uint16(hidItemValue(it.desc, it.pos, dataLen))
			usageFound = true
		case itemCollection:
			// A Usage must have been seen for the pair to be valid.
			pairReady = usageFound
			usageFound = false
		case itemInput, itemOutput, itemFeature, itemEndCollection:
			usageFound = false
		}

		it.pos += dataLen + keySize

		if pairReady {
			return UsagePair{UsagePage: it.usagePage, Usage: it.usage}, usagePairFound
		}
	}

	if initial && usageFound {
		return UsagePair{UsagePage: it.usagePage, Usage: it.usage}, usagePairFound
	}

	return UsagePair{}, usageExhausted
}

// usagePairs returns every top-level usage pair in desc, in descriptor
// order. Pairs found before a malformed item are kept.
func usagePairs(desc []byte) []UsagePair {
	var pairs []UsagePair
	it := usageIterator{desc: desc}
	for {
		pair, status := it.next()
		if status != usagePairFound {
			return pairs
		}
		pairs = append(pairs, pair)
	}
}

// usesNumberedReports reports whether desc contains a Report ID item,
// meaning all reports exchanged with the device carry a report number.
// Malformed descriptors read as unnumbered.
func usesNumberedReports(desc []byte) bool {
	pos := 0
	for pos < len(desc) {
		if desc[pos]&0xfc == itemReportID {
			return true
		}

		dataLen, keySize, ok := hidItemSize(desc, pos)
		if !ok {
			return false
		}
		pos += dataLen + keySize
	}
	return false
}
