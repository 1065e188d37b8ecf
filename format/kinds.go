package format

// Kind identifies the physical layout of a partition file's body (spec
// §4.2's table). It is stored in the envelope right after the magic.
type Kind uint8

const (
	KindKmerCount Kind = iota
	KindHashCount
	KindMatrixCount
	KindMatrixHashCount
	KindPAMatrix
	KindPAMatrixHash
	KindVector
	KindHist
)

func (k Kind) String() string {
	switch k {
	case KindKmerCount:
		return "KMER_COUNT"
	case KindHashCount:
		return "HASH_COUNT"
	case KindMatrixCount:
		return "MATRIX_COUNT"
	case KindMatrixHashCount:
		return "MATRIX_HASH_COUNT"
	case KindPAMatrix:
		return "PA_MATRIX"
	case KindPAMatrixHash:
		return "PA_MATRIX_HASH"
	case KindVector:
		return "VECTOR"
	case KindHist:
		return "HIST"
	default:
		return "UNKNOWN"
	}
}

// Sized is implemented by kind-specific header structs that can
// compute their own fixed record size, so Open can configure the
// Reader without the caller separately recomputing it (spec §4.2's
// per-kind record table).
type Sized interface {
	RecordSize() int
}

// CountHeader is the KMER_COUNT header (spec §4.2 table row 1).
type CountHeader struct {
	K          int
	KmerSlots  int
	CountSlots int
	SampleID   string
	Partition  int
}

// RecordSize returns kmer limbs (8 bytes each) + count_slots bytes.
func (h CountHeader) RecordSize() int { return h.KmerSlots*8 + h.CountSlots }

// HashCountHeader is the HASH_COUNT header.
type HashCountHeader struct {
	CountSlots int
	SampleID   string
	Partition  int
}

func (h HashCountHeader) RecordSize() int { return 8 + h.CountSlots }

// MatrixCountHeader is the MATRIX_COUNT header.
type MatrixCountHeader struct {
	K          int
	KmerSlots  int
	CountSlots int
	NbSamples  int
	ID         string
	Partition  int
}

func (h MatrixCountHeader) RecordSize() int {
	return h.KmerSlots*8 + h.CountSlots*h.NbSamples
}

// MatrixHashCountHeader is the MATRIX_HASH_COUNT header.
type MatrixHashCountHeader struct {
	CountSlots int
	NbSamples  int
	ID         string
	Partition  int
}

func (h MatrixHashCountHeader) RecordSize() int { return 8 + h.CountSlots*h.NbSamples }

// PAMatrixHeader is the PA_MATRIX header.
type PAMatrixHeader struct {
	K         int
	KmerSlots int
	Bits      int
	Bytes     int
	ID        string
	Partition int
}

func (h PAMatrixHeader) RecordSize() int { return h.KmerSlots*8 + h.Bytes }

// PAMatrixHashHeader is the PA_MATRIX_HASH header.
type PAMatrixHashHeader struct {
	Bits      int
	Bytes     int
	ID        string
	Partition int
}

func (h PAMatrixHashHeader) RecordSize() int { return 8 + h.Bytes }

// VectorHeader is the VECTOR header: rows of ⌈bits/8⌉ bytes, one per
// hash value in [lower_hash, lower_hash+count).
type VectorHeader struct {
	Bits      int
	ID        string
	Partition int
	LowerHash uint64
	Count     uint64
}

func (h VectorHeader) RecordSize() int { return (h.Bits + 7) / 8 }

// HistHeader is the HIST header: H=255 u64 counts, one record.
type HistHeader struct {
	SampleID string
	K        int
}

// HistSize is H from spec §3's Histogram entity.
const HistSize = 255

func (h HistHeader) RecordSize() int { return HistSize * 8 }
