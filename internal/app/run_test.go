package app

import (
	"bytes"
	"net"
	"strings"
	"testing"
)

// TestRun_ServeCommand_FailsWithoutDatabase はDBに接続できない場合にserveが起動せずエラーを返すことを検証する。
func TestRun_ServeCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run(serve) should fail when the database is unreachable")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("error should mention the database, got %v", err)
	}
}

// TestRun_WorkerCommand_FailsWithoutDatabase はworkerがDB疎通確認に失敗するとエラーを返すことを検証する。
func TestRun_WorkerCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"worker"}); err == nil {
		t.Fatal("Run(worker) should fail when the database is unreachable")
	}
}

// TestRun_DefaultCommand_FailsWithoutDatabase はデフォルトコマンド（serve）もDB接続を要求することを検証する。
func TestRun_DefaultCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{}); err == nil {
		t.Fatal("Run([]) should fail when the database is unreachable")
	}
}

// TestRun_CreateTrainer_ValidatesBeforeConnecting は引数が不正な場合にDBへ接続せずエラーを返すことを検証する。
func TestRun_CreateTrainer_ValidatesBeforeConnecting(t *testing.T) {
	setTestEnv(t)
	t.Setenv(trainerPasswordEnv, "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"create-trainer", "-email", "not-an-email", "-name", "Coach"})
	if err == nil {
		t.Fatal("Run(create-trainer) with invalid args should return error")
	}
	if strings.Contains(err.Error(), "database") {
		t.Errorf("validation should fail before the database is contacted, got %v", err)
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	unsetRequiredEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_Healthcheck_SkipsConfig はhealthcheckが設定読み込みなしで実行されることを検証する。
func TestRun_Healthcheck_SkipsConfig(t *testing.T) {
	unsetRequiredEnv(t)

	// 待ち受けのないポートを確保する
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	t.Setenv("SERVER_PORT", port)

	var buf bytes.Buffer
	err = Run(&buf, []string{"healthcheck"})
	if err == nil {
		t.Fatal("healthcheck against a closed port should fail")
	}
	if !strings.Contains(err.Error(), "health check failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
