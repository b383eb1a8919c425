package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/config"
	"tracker-api/internal/httpx/mw"
)

// Claims represents JWT claims used by this service.
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

type tokenKeys struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

func loadKeys(cfg *config.Config) (*tokenKeys, error) {
	hs := &tokenKeys{method: jwt.SigningMethodHS256, signKey: []byte(cfg.JWT.HSSecret), verifyKey: []byte(cfg.JWT.HSSecret)}
	switch cfg.JWT.Algo {
	case "RS256":
		if cfg.JWT.RSPrivateKey == "" || cfg.JWT.RSPublicKey == "" {
			return hs, nil
		}
		priv, err := parseRSAPrivateKeyFromPEM([]byte(cfg.JWT.RSPrivateKey))
		if err != nil {
			return nil, err
		}
		pub, err := parseRSAPublicKeyFromPEM([]byte(cfg.JWT.RSPublicKey))
		if err != nil {
			return nil, err
		}
		return &tokenKeys{method: jwt.SigningMethodRS256, signKey: priv, verifyKey: pub}, nil
	case "HS256", "":
		return hs, nil
	default:
		return nil, goerr.New("unsupported JWT_ALGO", goerr.V("algo", cfg.JWT.Algo))
	}
}

func parseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, goerr.New("invalid RSA private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	k8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, goerr.Wrap(err, "parse private key")
	}
	key, ok := k8.(*rsa.PrivateKey)
	if !ok {
		return nil, goerr.New("unsupported PKCS8 private key type")
	}
	return key, nil
}

func parseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, goerr.New("invalid RSA public PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, goerr.Wrap(err, "parse public key")
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, goerr.New("unsupported public key type")
	}
	return key, nil
}

// SignAccess issues an access token for sub.
func SignAccess(cfg *config.Config, sub string, kind string) (string, error) {
	keys, err := loadKeys(cfg)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{cfg.JWT.Audience},
			Subject:   sub,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWT.AccessMin) * time.Minute)),
		},
	}
	s, err := jwt.NewWithClaims(keys.method, claims).SignedString(keys.signKey)
	if err != nil {
		return "", goerr.Wrap(err, "sign access token")
	}
	return s, nil
}

// ParseAndValidate verifies a token string and returns claims.
func ParseAndValidate(cfg *config.Config, tokenStr string) (*Claims, error) {
	keys, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithIssuer(cfg.JWT.Issuer),
		jwt.WithAudience(cfg.JWT.Audience),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) { return keys.verifyKey, nil })
	if err != nil {
		return nil, goerr.Wrap(err, "parse token")
	}
	if !tok.Valid {
		return nil, goerr.New("invalid token")
	}
	return claims, nil
}

// Parser adapts ParseAndValidate to the JWT middleware.
func Parser(cfg *config.Config) mw.TokenParser {
	return func(token string) (string, string, error) {
		claims, err := ParseAndValidate(cfg, token)
		if err != nil {
			return "", "", err
		}
		return claims.Subject, claims.Kind, nil
	}
}
