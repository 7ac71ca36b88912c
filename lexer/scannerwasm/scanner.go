// Package scannerwasm hosts external scanners compiled to WebAssembly.
// A scanner module exports linear memory plus two functions:
//
//	scanner_alloc(size i32) -> i32
//	scanner_scan(srcPtr, srcLen, validPtr, validLen i32) -> i64
//
// The host copies the remaining source bytes and the valid-terminal bitset
// (little-endian 64-bit words) into guest memory and calls scanner_scan.
// The result packs the match: the high 32 bits hold the matched terminal
// plus one, the low 32 bits the match length in bytes; zero means no match.
package scannerwasm

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/text"
)

// Scanner runs one WebAssembly scanner module. Guest calls are serialized;
// one Scanner may back a single parser at a time without extra locking.
type Scanner struct {
	runtime wazero.Runtime

	mu    sync.Mutex
	mod   api.Module
	alloc api.Function
	scan  api.Function
}

// Load compiles and instantiates a scanner module. The caller owns the
// returned Scanner and must Close it.
func Load(ctx context.Context, bin []byte) (*Scanner, error) {
	runtime := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	mod, err := runtime.Instantiate(ctx, bin)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating scanner module: %w", err)
	}

	s := &Scanner{
		runtime: runtime,
		mod:     mod,
		alloc:   mod.ExportedFunction("scanner_alloc"),
		scan:    mod.ExportedFunction("scanner_scan"),
	}
	if s.alloc == nil || s.scan == nil || mod.Memory() == nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("scanner module must export memory, scanner_alloc and scanner_scan")
	}
	return s, nil
}

// Close releases the module and its runtime.
func (s *Scanner) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

// Scan implements lexer.Scanner by delegating to the guest. Guest traps and
// malformed results read as no match.
func (s *Scanner) Scan(src []byte, start text.ByteOffset, valid grammar.SymbolSet) (grammar.Symbol, int, bool) {
	rest := src[start:]
	if len(rest) == 0 {
		return 0, 0, false
	}

	words := valid.Words()
	validBytes := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(validBytes[8*i:], w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()

	srcPtr, err := s.allocWrite(ctx, rest)
	if err != nil {
		return 0, 0, false
	}
	validPtr, err := s.allocWrite(ctx, validBytes)
	if err != nil {
		return 0, 0, false
	}

	res, err := s.scan.Call(ctx,
		uint64(srcPtr), uint64(len(rest)),
		uint64(validPtr), uint64(len(validBytes)))
	if err != nil || len(res) != 1 || res[0] == 0 {
		return 0, 0, false
	}

	sym := grammar.Symbol(uint32(res[0]>>32) - 1)
	length := int(uint32(res[0]))
	if length <= 0 || length > len(rest) || !valid.Has(sym) {
		return 0, 0, false
	}
	return sym, length, true
}

func (s *Scanner) allocWrite(ctx context.Context, data []byte) (uint32, error) {
	res, err := s.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("scanner_alloc returned %d results", len(res))
	}
	ptr := uint32(res[0])
	if len(data) > 0 && !s.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write of %d bytes at %d out of range", len(data), ptr)
	}
	return ptr, nil
}
