package cli

import (
	"encoding/json"
	"fmt"

	httpClient "github.com/iudanet/opsync/internal/client/api"
	"github.com/iudanet/opsync/internal/client/data"
	"github.com/iudanet/opsync/internal/client/iocli"
	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/client/sync"
	"github.com/iudanet/opsync/internal/config"
)

// Cli выполняет команды поверх локального движка синхронизации
type Cli struct {
	io          iocli.IO
	apiClient   httpClient.ClientAPI
	dataService data.Service
	syncService sync.Service
	conflicts   storage.ConflictStorage
	cfg         *config.Client
	format      string
}

// New создает Cli; format один из ValidFormats
func New(
	io iocli.IO,
	apiClient httpClient.ClientAPI,
	dataService data.Service,
	syncService sync.Service,
	conflicts storage.ConflictStorage,
	cfg *config.Client,
	format string,
) *Cli {
	return &Cli{
		io:          io,
		apiClient:   apiClient,
		dataService: dataService,
		syncService: syncService,
		conflicts:   conflicts,
		cfg:         cfg,
		format:      format,
	}
}

// jsonOutput: явный --format json, либо auto при выводе не в терминал
func (c *Cli) jsonOutput() bool {
	switch c.format {
	case FormatJSON:
		return true
	case FormatAuto:
		return !c.io.IsTerminal()
	default:
		return false
	}
}

func (c *Cli) printJSON(v any) error {
	enc := json.NewEncoder(c.io)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// printPayload печатает документ с отступами; невалидный JSON выводится как есть
func (c *Cli) printPayload(prefix string, payload json.RawMessage) {
	if len(payload) == 0 {
		return
	}
	out, err := json.MarshalIndent(payload, prefix, "  ")
	if err != nil {
		out = payload
	}
	c.io.Printf("%s%s\n", prefix, out)
}
