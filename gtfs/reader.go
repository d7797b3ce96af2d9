// Package gtfs reads GTFS text tables from disk and builds headway
// schedule snapshots. Tables are streamed row by row through a small
// reflection-based CSV reader rather than loaded wholesale, so feeds far
// larger than the active window stay cheap to scan.
package gtfs

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	feed "github.com/artonge/go-gtfs"
)

// ShapeRow is one shapes.txt record. The go-gtfs row structs cover the
// core tables; shapes and transfers are read with local rows in the same
// csv-tag style.
type ShapeRow struct {
	ShapeID  string  `csv:"shape_id"`
	Lat      float64 `csv:"shape_pt_lat"`
	Lon      float64 `csv:"shape_pt_lon"`
	Sequence int     `csv:"shape_pt_sequence"`
}

// TransferRow is one transfers.txt record.
type TransferRow struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    int    `csv:"transfer_type"`
	MinTransferTime int    `csv:"min_transfer_time"`
}

func IterateStops(fileName string, handler func(int, *feed.Stop) bool) error {
	return iterateCsvFile(fileName, ',', feed.Stop{}, handler)
}

func IterateRoutes(fileName string, handler func(int, *feed.Route) bool) error {
	return iterateCsvFile(fileName, ',', feed.Route{}, handler)
}

func IterateTrips(fileName string, handler func(int, *feed.Trip) bool) error {
	return iterateCsvFile(fileName, ',', feed.Trip{}, handler)
}

func IterateStopTimes(fileName string, handler func(int, *feed.StopTime) bool) error {
	return iterateCsvFile(fileName, ',', feed.StopTime{}, handler)
}

func IterateShapes(fileName string, handler func(int, *ShapeRow) bool) error {
	return iterateCsvFile(fileName, ',', ShapeRow{}, handler)
}

func IterateTransfers(fileName string, handler func(int, *TransferRow) bool) error {
	return iterateCsvFile(fileName, ',', TransferRow{}, handler)
}

func iterateCsvFile[T any](fileName string, comma rune, outInstance T, handler func(int, *T) bool) error {
	f, err := os.Open(fileName)
	if err != nil {
		return err
	}

	defer f.Close()

	return iterateCsvReader(f, comma, outInstance, handler)
}

func iterateCsvReader[T any](f io.Reader, comma rune, outInstance T, handler func(int, *T) bool) error {
	f = skipBOM(f)

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return err
	}

	headerMap := make(map[string]int)
	for i, v := range header {
		headerMap[strings.TrimSpace(v)] = i
	}

	typ := reflect.TypeOf(outInstance)
	currentStruct := reflect.New(typ).Elem()
	zeroValue := reflect.Zero(typ)
	pos := 0

	for {
		line, err := r.Read()
		if err != nil {
			break
		}

		err = readLine(line, headerMap, currentStruct)
		if err != nil {
			return err
		}

		t := currentStruct.Interface().(T)

		if !handler(pos, &t) {
			break
		}

		currentStruct.Set(zeroValue)
		pos++
	}

	return nil
}

// Skip the Byte Order Mark (BOM) if it exists.
func skipBOM(file io.Reader) io.Reader {
	bom := make([]byte, 3)
	n, err := io.ReadFull(file, bom)
	if err != nil {
		return io.MultiReader(bytes.NewReader(bom[:n]), file)
	}

	if bom[0] != 0xEF || bom[1] != 0xBB || bom[2] != 0xBF {
		return io.MultiReader(bytes.NewReader(bom), file)
	}

	return file
}

func readLine(line []string, headerMap map[string]int, out reflect.Value) error {
	for j := 0; j < out.NumField(); j++ {
		propertyTag := out.Type().Field(j).Tag.Get("csv")
		if propertyTag == "" {
			continue
		}

		propertyPosition, ok := headerMap[propertyTag]
		if !ok || propertyPosition >= len(line) {
			continue
		}

		err := storeValue(line[propertyPosition], out.Field(j))
		if err != nil {
			return fmt.Errorf("line: %v to struct: %v:\n	==> %v", line, out, err)
		}
	}

	return nil
}

// Set the value of valRv to rawValue, converting from its string form.
func storeValue(rawValue string, valRv reflect.Value) error {
	rawValue = strings.TrimSpace(rawValue)
	switch valRv.Kind() {
	case reflect.String:
		valRv.SetString(rawValue)
	case reflect.Uint32:
		fallthrough
	case reflect.Uint64:
		fallthrough
	case reflect.Uint:
		value, err := strconv.ParseUint(rawValue, 10, 64)
		if err != nil && rawValue != "" {
			return fmt.Errorf("error parsing uint '%v':\n	==> %v", rawValue, err)
		}
		valRv.SetUint(value)
	case reflect.Int32:
		fallthrough
	case reflect.Int64:
		fallthrough
	case reflect.Int:
		value, err := strconv.ParseInt(rawValue, 10, 64)
		if err != nil && rawValue != "" {
			return fmt.Errorf("error parsing int '%v':\n	==> %v", rawValue, err)
		}
		valRv.SetInt(value)
	case reflect.Float32:
		fallthrough
	case reflect.Float64:
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil && rawValue != "" {
			return fmt.Errorf("error parsing float '%v':\n	==> %v", rawValue, err)
		}
		valRv.SetFloat(value)
	case reflect.Bool:
		value, err := strconv.ParseBool(rawValue)
		if err != nil && rawValue != "" {
			return fmt.Errorf("error parsing bool '%v':\n	==> %v", rawValue, err)
		}
		valRv.SetBool(value)
	}

	return nil
}
