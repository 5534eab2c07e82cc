package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/model"
)

// decodeRun fills the JSON columns of a scanned run. A nil or "null"
// result leaves Result unset.
func decodeRun(r *model.Run, reqJSON, resultJSON, pushesJSON []byte) error {
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return eris.Wrapf(err, "store: unmarshal request of run %s", r.ID)
	}
	if present(resultJSON) {
		r.Result = &model.NormalizedResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return eris.Wrapf(err, "store: unmarshal result of run %s", r.ID)
		}
	}
	if present(pushesJSON) {
		if err := json.Unmarshal(pushesJSON, &r.Pushes); err != nil {
			return eris.Wrapf(err, "store: unmarshal pushes of run %s", r.ID)
		}
	}
	return nil
}

func decodeRecord(rec *Record, dataJSON, resultJSON []byte) error {
	if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
		return eris.Wrapf(err, "store: unmarshal record %s/%s", rec.Table, rec.Key)
	}
	if present(resultJSON) {
		rec.Result = &model.NormalizedResult{}
		if err := json.Unmarshal(resultJSON, rec.Result); err != nil {
			return eris.Wrapf(err, "store: unmarshal record result %s/%s", rec.Table, rec.Key)
		}
	}
	return nil
}

func present(raw []byte) bool {
	return len(raw) > 0 && string(raw) != "null"
}
