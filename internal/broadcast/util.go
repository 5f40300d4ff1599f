package broadcast

import (
	"encoding/json"
	"strconv"
)

func idString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func decodeCommand(raw []byte, cmd *inboundCommand) error {
	return json.Unmarshal(raw, cmd)
}
