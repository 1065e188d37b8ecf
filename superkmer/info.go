package superkmer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// InfoFileName is the per-sample text summary written alongside a
// sample's bin files (spec §4.3/§6: "a small info file recording
// file_count and, per partition, the super-k-mer count and byte
// size").
const InfoFileName = "skp.info"

// Info is the parsed form of a sample's skp.info file.
type Info struct {
	FileCount  int
	SuperKmers []uint64
	Bytes      []uint64
}

// WriteInfo writes an Info in the plain line-oriented format read
// back by ReadInfo: a file_count line, then one "partition count
// bytes" line per partition.
func WriteInfo(path string, info Info) error {
	f, err := os.Create(path)
	if err != nil {
		return &kerrors.IOError{Op: "create info", Path: path, Err: err}
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "file_count\t%d\n", info.FileCount)
	for p := 0; p < info.FileCount; p++ {
		fmt.Fprintf(w, "%d\t%d\t%d\n", p, info.SuperKmers[p], info.Bytes[p])
	}
	if err := w.Flush(); err != nil {
		return &kerrors.IOError{Op: "flush info", Path: path, Err: err}
	}
	return nil
}

// ReadInfo parses a skp.info file written by WriteInfo.
func ReadInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, &kerrors.IOError{Op: "read info", Path: path, Err: err}
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: fmt.Errorf("empty file")}
	}
	var info Info
	head := strings.Fields(lines[0])
	if len(head) != 2 || head[0] != "file_count" {
		return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: fmt.Errorf("missing file_count header")}
	}
	fc, err := strconv.Atoi(head[1])
	if err != nil {
		return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: err}
	}
	info.FileCount = fc
	info.SuperKmers = make([]uint64, fc)
	info.Bytes = make([]uint64, fc)
	for i := 0; i < fc; i++ {
		if i+1 >= len(lines) {
			return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: fmt.Errorf("truncated partition table")}
		}
		fields := strings.Fields(lines[i+1])
		if len(fields) != 3 {
			return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: fmt.Errorf("malformed partition row %d", i)}
		}
		p, err := strconv.Atoi(fields[0])
		if err != nil || p != i {
			return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: fmt.Errorf("out-of-order partition row %d", i)}
		}
		sk, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: err}
		}
		sz, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return Info{}, &kerrors.FormatError{Op: "parse info", Path: path, Kind: "skp.info", Err: err}
		}
		info.SuperKmers[i] = sk
		info.Bytes[i] = sz
	}
	return info, nil
}
