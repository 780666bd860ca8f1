package turnnode

import (
	"fmt"
	"strings"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contract.ErrTurnFailed)
	}

	resp := in.Response
	resp.Body = strings.TrimSpace(resp.Body)
	if resp.Body == "" {
		return GraphOutput{}, fmt.Errorf("%w: dialogue returned an empty body", contract.ErrTurnFailed)
	}
	return GraphOutput{Response: resp}, nil
}
