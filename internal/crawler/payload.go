package crawler

import (
	"encoding/json"
	"fmt"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

type portalEnvelope struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data"`
	PageInfo *domain.PageInfo `json:"pageInfo"`
}

// DecodePayload parses one intercepted reporting response. ok=false means
// the payload is not a usable result page (success=false or no page info)
// and the tap should keep waiting; that is not an error.
func DecodePayload(body []byte) (domain.Page, bool, error) {
	var env portalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Page{}, false, fmt.Errorf("decode portal payload: %w", err)
	}
	if !env.Success || env.PageInfo == nil {
		return domain.Page{}, false, nil
	}

	records := make([]domain.Record, 0, len(env.Data))
	for _, row := range env.Data {
		records = append(records, domain.Record{Values: row})
	}
	return domain.Page{Records: records, Info: *env.PageInfo}, true, nil
}
