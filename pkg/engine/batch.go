package engine

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/types"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// Batch is one decoded columnar result chunk. Ownership of Record transfers
// to the caller when a batch is yielded; the caller releases it.
type Batch struct {
	Schema   types.Schema
	Record   arrow.Record
	RowCount int64
}

// Release frees the batch's columnar memory. Safe to call once per batch.
func (b *Batch) Release() {
	if b.Record != nil {
		b.Record.Release()
		b.Record = nil
	}
}

// decodeBatches decodes one wire payload into batches. The payload is an
// Arrow IPC stream carrying its own schema; the row count the server claims
// must match what actually decodes.
func decodeBatches(payload *wire.ArrowBatch) ([]*Batch, error) {
	rdr, err := ipc.NewReader(bytes.NewReader(payload.Data), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, errors.Wrap(err, "opening arrow stream")
	}
	defer rdr.Release()

	schema, err := types.SchemaFromArrow(rdr.Schema())
	if err != nil {
		return nil, errors.Wrap(err, "converting arrow schema")
	}

	var (
		batches []*Batch
		rows    int64
	)
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		rows += rec.NumRows()
		batches = append(batches, &Batch{
			Schema:   schema,
			Record:   rec,
			RowCount: rec.NumRows(),
		})
	}
	if err := rdr.Err(); err != nil {
		for _, b := range batches {
			b.Release()
		}
		return nil, errors.Wrap(err, "reading arrow stream")
	}
	if rows != payload.RowCount {
		for _, b := range batches {
			b.Release()
		}
		return nil, &sparkerrors.ExecutionError{
			Message: errors.Errorf("row count mismatch: batch declares %d rows, decoded %d", payload.RowCount, rows).Error(),
		}
	}
	return batches, nil
}
