package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/model"
	"go.uber.org/zap"
)

// restHandle hands the escaped path and the raw body to the gateway, which
// renders every reply, errors included.
func (s *Server) restHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.String(http.StatusBadRequest, "%s\r\n", err.Error())
			return
		}

		resp := s.gateway.Dispatch(ctx.Request.URL.EscapedPath(), body)
		if resp.Close {
			ctx.Header("Connection", "close")
		}
		ctx.Data(resp.Status, resp.ContentType, resp.Body)
	}
}

func (s *Server) healthHandle() func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		reply := model.HealthReply{Status: "ok"}
		if msg, warm := s.node.Warmup(); warm {
			reply.Status = "warmup"
			reply.Warmup = msg
		}

		err := s.node.View(func(v *chain.View) error {
			height, tip, err := v.Height()
			if err != nil {
				return err
			}
			reply.Height = height
			reply.Tip = tip.String()
			reply.Mempool = v.MempoolCount()
			return nil
		})
		if err != nil {
			s.logger.Error("health", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"code": http.StatusInternalServerError,
				"msg":  err.Error(),
			})
			return
		}

		status := http.StatusOK
		if reply.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, reply)
	}
}
