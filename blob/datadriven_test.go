// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blob

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestRecordStream drives EncodeRecord/DecodeRecord the way a blob file
// builder and reader would: a running byte stream built up across "encode"
// commands and walked back across "decode" commands. The golden output
// pins offsets and lengths, which follow deterministically from the input;
// it deliberately never pins a record CRC, which is an opaque bit pattern
// not worth baking into a text fixture.
func TestRecordStream(t *testing.T) {
	var stream []byte
	var hasTTL bool
	datadriven.RunTest(t, "testdata/record_stream", func(t *testing.T, td *datadriven.TestData) string {
		var buf bytes.Buffer
		switch td.Cmd {
		case "reset":
			stream = nil
			hasTTL = false
			if td.HasArg("ttl") {
				td.ScanArgs(t, "ttl", &hasTTL)
			}
			return ""

		case "encode":
			for _, line := range strings.Split(strings.TrimRight(td.Input, "\n"), "\n") {
				if line == "" {
					continue
				}
				fields := strings.SplitN(line, " ", 3)
				key, val := fields[0], fields[1]
				var expiration uint64
				if hasTTL && len(fields) == 3 {
					expiration, _ = strconv.ParseUint(fields[2], 10, 64)
				}
				offset := uint64(len(stream))
				stream = EncodeRecord(stream, hasTTL, expiration, []byte(key), []byte(val))
				size := uint64(len(stream)) - offset
				fmt.Fprintf(&buf, "offset=%d size=%d key_len=%d value_len=%d\n", offset, size, len(key), len(val))
			}
			fmt.Fprintf(&buf, "stream_len=%d\n", len(stream))
			return buf.String()

		case "decode":
			off := 0
			for off < len(stream) {
				rec, n, err := DecodeRecord(stream[off:], hasTTL, true /* verifyChecksum */)
				require.NoError(t, err)
				fmt.Fprintf(&buf, "key=%q value=%q expiration=%d consumed=%d\n", rec.Key, rec.Value, rec.Expiration, n)
				off += n
			}
			return buf.String()

		default:
			panic(fmt.Sprintf("unknown command: %s", td.Cmd))
		}
	})
}
