package eino

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var initOnce sync.Once

// Init 进程内只注册一次全局回调，重复调用无副作用
func Init() {
	initOnce.Do(func() {
		einocallbacks.AppendGlobalHandlers(newGlobalHandler())
	})
}

func newGlobalHandler() einocallbacks.Handler {
	return cbtemplate.NewHandlerHelper().
		ChatModel(newChatModelCallbackHandler()).
		Embedding(newEmbeddingCallbackHandler()).
		Handler()
}
