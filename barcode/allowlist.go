package barcode

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// ReadAllowList reads a newline separated list of cell barcodes. Files whose
// name ends in ".gz" are decompressed.
func ReadAllowList(ctx context.Context, path string) (allowed map[string]struct{}, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open allow-list", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "close", path)
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, path)
		}
		defer gz.Close()
		r = gz
	}
	allowed = map[string]struct{}{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		bc := strings.TrimSpace(scanner.Text())
		if bc == "" {
			continue
		}
		allowed[bc] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "read allow-list", path)
	}
	log.Debug.Printf("restricting to %d allowed cell barcodes", len(allowed))
	return allowed, nil
}
