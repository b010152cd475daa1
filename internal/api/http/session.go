package http

import (
	"errors"

	"office-villain-be/internal/service"
	"office-villain-be/internal/service/dto"
	"office-villain-be/internal/state"

	"github.com/kataras/iris/v12"
)

func CreateSession(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.SessionSvc.CreateSession()
		if err != nil {
			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(dto.ErrorResponse{Error: err.Error()})
			return
		}

		ctx.JSON(resp)
	}
}

func DescribeSession(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		info, err := appState.SessionSvc.Describe(ctx.Params().Get("id"))
		if err != nil {
			if errors.Is(err, service.ErrSessionNotFound) {
				ctx.StatusCode(iris.StatusNotFound)
			} else {
				ctx.StatusCode(iris.StatusInternalServerError)
			}

			ctx.JSON(dto.ErrorResponse{Error: err.Error()})
			return
		}

		ctx.JSON(info)
	}
}
