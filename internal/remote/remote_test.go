package remote_test

import (
	"net/http/httptest"
	"net/rpc"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboone/sikulibridge/internal/enginetest"
	"github.com/cboone/sikulibridge/internal/remote"
)

func newClient(t *testing.T) (*remote.Client, *enginetest.Engine, *test.Hook) {
	t.Helper()
	engine := enginetest.New(enginetest.DefaultKeywords())
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c, err := remote.New(srv.URL+"/", nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, engine, hook
}

func TestKeywordNames(t *testing.T) {
	c, engine, _ := newClient(t)

	names, err := c.KeywordNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"click", "find"}, names)
	assert.Equal(t, 1, engine.CallCount(remote.MethodKeywordNames))
}

func TestKeywordArgumentsAndDocumentation(t *testing.T) {
	c, _, _ := newClient(t)

	args, err := c.KeywordArguments("find")
	require.NoError(t, err)
	assert.Equal(t, []string{"image", "timeout=3"}, args)

	doc, err := c.KeywordDocumentation("click")
	require.NoError(t, err)
	assert.Equal(t, "Click image", doc)
}

func TestUnknownKeywordFaultPropagates(t *testing.T) {
	c, _, _ := newClient(t)

	_, err := c.KeywordArguments("nope")
	var serverErr rpc.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, err.Error(), `no keyword with name "nope"`)
}

func TestRunKeywordPass(t *testing.T) {
	c, engine, hook := newClient(t)

	ret, err := c.RunKeyword("find", []interface{}{"button.png", nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, "found button.png", ret)

	calls := engine.KeywordCalls("find")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{"button.png", ""}, calls[0].Args)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "*INFO* ran find", entry.Message)
	assert.Equal(t, "find", entry.Data["keyword"])
}

func TestRunKeywordFail(t *testing.T) {
	c, _, _ := newClient(t)

	_, err := c.RunKeyword("find", nil, nil)
	var kwErr *remote.KeywordError
	require.ErrorAs(t, err, &kwErr)
	assert.Equal(t, "find", kwErr.Keyword)
	assert.Equal(t, "find: image argument is required", err.Error())
	assert.Equal(t, "at find", kwErr.Traceback)
}

func TestRunKeywordSendsKwargsOnlyWhenPresent(t *testing.T) {
	c, engine, _ := newClient(t)

	_, err := c.RunKeyword("click", []interface{}{"a.png"}, map[string]interface{}{"similarity": "0.9"})
	require.NoError(t, err)
	_, err = c.RunKeyword("click", []interface{}{"b.png"}, nil)
	require.NoError(t, err)

	calls := engine.KeywordCalls("click")
	require.Len(t, calls, 2)
	assert.Equal(t, []interface{}{"a.png"}, calls[0].Args)
	assert.Equal(t, 3, calls[0].Params)
	assert.Equal(t, []interface{}{"b.png"}, calls[1].Args)
	assert.Equal(t, 2, calls[1].Params)
}

func TestStop(t *testing.T) {
	c, engine, _ := newClient(t)

	require.NoError(t, c.Stop())
	select {
	case <-engine.Stopped():
	default:
		t.Fatal("engine did not receive stop_remote_server")
	}
	assert.Len(t, engine.KeywordCalls(remote.StopRemoteServer), 1)
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(enginetest.New(nil))
	url := srv.URL + "/"
	srv.Close()

	c, err := remote.New(url, nil, nil)
	require.NoError(t, err)
	_, err = c.KeywordNames()
	require.Error(t, err)
}
