package handler

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidators(t *testing.T) {
	// 每个测试服务都会创建 Handler，重复注册必须成功
	require.NoError(t, registerValidators())
	require.NoError(t, registerValidators())

	type listOnly struct {
		Type string `binding:"listtype"`
	}
	assert.NoError(t, binding.Validator.ValidateStruct(&listOnly{Type: "watchlist"}))
	assert.Error(t, binding.Validator.ValidateStruct(&listOnly{Type: "seen"}))
}
