package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 客户端请求类型
const (
	REQ_START_GAME       = "StartGame"
	REQ_SELECT_CHARACTER = "SelectCharacter"
	REQ_ASK_QUESTION     = "AskQuestion"
	REQ_BEGIN_VOTING     = "BeginVoting"
	REQ_CONFIRM_VOTE     = "ConfirmVote"
	REQ_RESTART          = "Restart"
	REQ_SNAPSHOT         = "Snapshot"
)

// 内部事件类型，只由服务端产生，数据放在 NativeData 中
const (
	REQ_TIMEOUT       = "Timeout"
	REQ_ORACLE_RESULT = "OracleResult"
	REQ_ATTACH        = "Attach"
	REQ_DETACH        = "Detach"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	NativeData any `json:"-"`
}

// IsInternal 内部事件不能由客户端发起
func IsInternal(reqType string) bool {
	switch reqType {
	case REQ_TIMEOUT, REQ_ORACLE_RESULT, REQ_ATTACH, REQ_DETACH:
		return true
	default:
		return false
	}
}

func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	var req T

	// 无参数的请求允许省略 data
	if len(wrapper.Data) == 0 || string(wrapper.Data) == "null" {
		return &req
	}

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"解析请求失败",
			zap.String("request_type", reqType),
			zap.Error(err),
			zap.ByteString("data", wrapper.Data),
		)
		return nil
	}

	return &req
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	return tryUnwrap[StartGameRequest](wrapper, REQ_START_GAME)
}

func TryUnwrapSelectCharacterRequest(wrapper RequestWrapper) *SelectCharacterRequest {
	return tryUnwrap[SelectCharacterRequest](wrapper, REQ_SELECT_CHARACTER)
}

func TryUnwrapAskQuestionRequest(wrapper RequestWrapper) *AskQuestionRequest {
	return tryUnwrap[AskQuestionRequest](wrapper, REQ_ASK_QUESTION)
}

func TryUnwrapBeginVotingRequest(wrapper RequestWrapper) *BeginVotingRequest {
	return tryUnwrap[BeginVotingRequest](wrapper, REQ_BEGIN_VOTING)
}

func TryUnwrapConfirmVoteRequest(wrapper RequestWrapper) *ConfirmVoteRequest {
	return tryUnwrap[ConfirmVoteRequest](wrapper, REQ_CONFIRM_VOTE)
}

func TryUnwrapTimeoutRequest(wrapper RequestWrapper) *TimeoutRequest {
	if wrapper.ReqType != REQ_TIMEOUT {
		return nil
	}

	req, _ := wrapper.NativeData.(*TimeoutRequest)

	return req
}

func TryUnwrapOracleResult(wrapper RequestWrapper) *OracleResult {
	if wrapper.ReqType != REQ_ORACLE_RESULT {
		return nil
	}

	res, _ := wrapper.NativeData.(*OracleResult)

	return res
}

func TryUnwrapAttachRequest(wrapper RequestWrapper) *AttachRequest {
	if wrapper.ReqType != REQ_ATTACH {
		return nil
	}

	req, _ := wrapper.NativeData.(*AttachRequest)

	return req
}

func TryUnwrapDetachRequest(wrapper RequestWrapper) *DetachRequest {
	if wrapper.ReqType != REQ_DETACH {
		return nil
	}

	req, _ := wrapper.NativeData.(*DetachRequest)

	return req
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_GAME_STATE  = "GameState"
	RESP_ROSTER      = "Roster"
	RESP_DIALOGUE    = "Dialogue"
	RESP_SELECTION   = "Selection"
	RESP_VOTE_RESULT = "VoteResult"
	RESP_GAME_RESULT = "GameResult"
	RESP_SNAPSHOT    = "Snapshot"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
