package headway

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// WriteSnapshotFile persists a snapshot as zstd-compressed JSON, so a
// restart within the same window hour can skip the GTFS parse.
func WriteSnapshotFile(fileName string, sn *Snapshot) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	write, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("open zstd writer: %w", err)
	}

	if err := json.NewEncoder(write).Encode(sn); err != nil {
		write.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return write.Close()
}

// ReadSnapshotFile loads a snapshot written by WriteSnapshotFile.
func ReadSnapshotFile(fileName string) (*Snapshot, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	read, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	defer read.Close()

	sn := &Snapshot{}
	if err := json.NewDecoder(read).Decode(sn); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return sn, nil
}
