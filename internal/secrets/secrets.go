// Package secrets resolves connection strings stored in AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// GetSecretValueAPI is the subset of the Secrets Manager client used here.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewClient builds a Secrets Manager client from the default AWS
// credential chain.
func NewClient(ctx context.Context) (*secretsmanager.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// dbSecret covers the two JSON layouts accepted for a database secret: a
// single "url" field, or the RDS-managed username/password/host layout.
type dbSecret struct {
	URL      string          `json:"url"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	Host     string          `json:"host"`
	Port     json.RawMessage `json:"port"`
	DBName   string          `json:"dbname"`
	Engine   string          `json:"engine"`
}

// DatabaseURL fetches secretID and returns a PostgreSQL connection string.
// The secret may hold the URL itself or a JSON document.
func DatabaseURL(ctx context.Context, client GetSecretValueAPI, secretID string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", secretID, err)
	}
	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return "", fmt.Errorf("secret %s has no string value", secretID)
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var s dbSecret
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", fmt.Errorf("decode secret %s: %w", secretID, err)
	}
	if s.URL != "" {
		return s.URL, nil
	}
	return s.connString()
}

func (s dbSecret) connString() (string, error) {
	if s.Host == "" || s.Username == "" {
		return "", errors.New("secret needs either url or username and host")
	}
	port := "5432"
	if len(s.Port) > 0 {
		var n int
		var str string
		switch {
		case json.Unmarshal(s.Port, &n) == nil:
			port = strconv.Itoa(n)
		case json.Unmarshal(s.Port, &str) == nil && str != "":
			port = str
		}
	}
	dbname := s.DBName
	if dbname == "" {
		dbname = "postgres"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.Username, s.Password),
		Host:   net.JoinHostPort(s.Host, port),
		Path:   "/" + dbname,
	}
	return u.String(), nil
}
