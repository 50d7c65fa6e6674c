package idp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"identity-service/internal/config"
	"identity-service/internal/util"
)

const providerCallTimeout = 10 * time.Second

// CognitoProvider implements Provider against an AWS Cognito user pool.
// Emails double as usernames; the credential function supplies the durable
// password used when a provisioning mode requires one up front.
type CognitoProvider struct {
	client       *cip.Client
	userPoolID   string
	clientID     string
	clientSecret string
	credential   func(email string) string
}

func NewCognitoProvider(ctx context.Context, cfg *config.Config, credential func(email string) string) (*CognitoProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Cognito.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Cognito: %w", err)
	}

	util.Info("Cognito provider initialized",
		zap.String("region", cfg.Cognito.Region),
		zap.String("user_pool_id", cfg.Cognito.UserPoolID),
	)

	return &CognitoProvider{
		client:       cip.NewFromConfig(awsCfg),
		userPoolID:   cfg.Cognito.UserPoolID,
		clientID:     cfg.Cognito.ClientID,
		clientSecret: cfg.Cognito.ClientSecret,
		credential:   credential,
	}, nil
}

func (p *CognitoProvider) CheckExists(ctx context.Context, email string) (*CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	out, err := p.client.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(email),
	})
	if err != nil {
		if classify(err) == KindNotFound {
			return &CheckResult{Exists: false}, nil
		}
		return nil, wrap("CheckExists", err)
	}

	result := &CheckResult{
		Exists:    true,
		Confirmed: out.UserStatus == types.UserStatusTypeConfirmed,
		Username:  aws.ToString(out.Username),
	}
	for _, attr := range out.UserAttributes {
		if aws.ToString(attr.Name) == "sub" {
			result.ExternalID = aws.ToString(attr.Value)
		}
	}

	return result, nil
}

func (p *CognitoProvider) ProvisionSelfService(ctx context.Context, email, name, phone string) (*ProvisionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	input := &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		SecretHash:     p.secretHash(email),
		Username:       aws.String(email),
		Password:       aws.String(p.credential(email)),
		UserAttributes: p.userAttributes(email, name, phone),
	}

	out, err := p.client.SignUp(ctx, input)
	if err != nil {
		return nil, wrap("ProvisionSelfService", err)
	}

	return &ProvisionResult{
		ExternalID:    aws.ToString(out.UserSub),
		Username:      email,
		CodeDelivered: out.CodeDeliveryDetails != nil,
	}, nil
}

func (p *CognitoProvider) ProvisionAdministrative(ctx context.Context, email, name, phone string) (*ProvisionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	attrs := p.userAttributes(email, name, phone)
	attrs = append(attrs, types.AttributeType{
		Name:  aws.String("email_verified"),
		Value: aws.String("true"),
	})

	out, err := p.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(p.userPoolID),
		Username:       aws.String(email),
		UserAttributes: attrs,
		MessageAction:  types.MessageActionTypeSuppress,
	})
	if err != nil {
		return nil, wrap("ProvisionAdministrative", err)
	}

	result := &ProvisionResult{Username: aws.ToString(out.User.Username)}
	for _, attr := range out.User.Attributes {
		if aws.ToString(attr.Name) == "sub" {
			result.ExternalID = aws.ToString(attr.Value)
		}
	}

	// Administratively created identities get the durable credential
	// immediately; there is no confirmation challenge to wait for.
	if err := p.SetDurableCredential(ctx, email, p.credential(email)); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *CognitoProvider) ConfirmCode(ctx context.Context, email, code string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		SecretHash:       p.secretHash(email),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return wrap("ConfirmCode", err)
	}
	return nil
}

func (p *CognitoProvider) ResendCode(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.clientID),
		SecretHash: p.secretHash(email),
		Username:   aws.String(email),
	})
	if err != nil {
		return wrap("ResendCode", err)
	}
	return nil
}

func (p *CognitoProvider) ForceConfirm(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.AdminConfirmSignUp(ctx, &cip.AdminConfirmSignUpInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(email),
	})
	if err != nil {
		return wrap("ForceConfirm", err)
	}
	return nil
}

func (p *CognitoProvider) SetDurableCredential(ctx context.Context, email, credential string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(email),
		Password:   aws.String(credential),
		Permanent:  true,
	})
	if err != nil {
		return wrap("SetDurableCredential", err)
	}
	return nil
}

func (p *CognitoProvider) IssueTokens(ctx context.Context, email, credential string) (*TokenBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": credential,
	}
	if p.clientSecret != "" {
		params["SECRET_HASH"] = computeSecretHash(p.clientSecret, email, p.clientID)
	}

	out, err := p.client.AdminInitiateAuth(ctx, &cip.AdminInitiateAuthInput{
		UserPoolId:     aws.String(p.userPoolID),
		ClientId:       aws.String(p.clientID),
		AuthFlow:       types.AuthFlowTypeAdminUserPasswordAuth,
		AuthParameters: params,
	})
	if err != nil {
		return nil, wrap("IssueTokens", err)
	}
	if out.AuthenticationResult == nil {
		return nil, NewProviderError(KindUnknown, "IssueTokens",
			errors.New("authentication result missing from provider response"))
	}

	auth := out.AuthenticationResult
	return &TokenBundle{
		AccessToken:  aws.ToString(auth.AccessToken),
		IDToken:      aws.ToString(auth.IdToken),
		RefreshToken: aws.ToString(auth.RefreshToken),
		TokenType:    aws.ToString(auth.TokenType),
		ExpiresAt:    time.Now().UTC().Add(time.Duration(auth.ExpiresIn) * time.Second),
	}, nil
}

func (p *CognitoProvider) SendResetChallenge(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.clientID),
		SecretHash: p.secretHash(email),
		Username:   aws.String(email),
	})
	if err != nil {
		return wrap("SendResetChallenge", err)
	}
	return nil
}

func (p *CognitoProvider) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	_, err := p.client.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		SecretHash:       p.secretHash(email),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return wrap("ConfirmReset", err)
	}
	return nil
}

func (p *CognitoProvider) userAttributes(email, name, phone string) []types.AttributeType {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("name"), Value: aws.String(name)},
	}
	if phone != "" {
		attrs = append(attrs, types.AttributeType{
			Name:  aws.String("phone_number"),
			Value: aws.String(phone),
		})
	}
	return attrs
}

func (p *CognitoProvider) secretHash(username string) *string {
	if p.clientSecret == "" {
		return nil
	}
	return aws.String(computeSecretHash(p.clientSecret, username, p.clientID))
}

func computeSecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func wrap(op string, err error) error {
	return NewProviderError(classify(err), op, err)
}

// classify maps Cognito's named exceptions onto the closed kind set.
func classify(err error) ErrorKind {
	var (
		usernameExists  *types.UsernameExistsException
		aliasExists     *types.AliasExistsException
		userNotFound    *types.UserNotFoundException
		codeMismatch    *types.CodeMismatchException
		expiredCode     *types.ExpiredCodeException
		tooManyRequests *types.TooManyRequestsException
		limitExceeded   *types.LimitExceededException
		tooManyFailed   *types.TooManyFailedAttemptsException
		notAuthorized   *types.NotAuthorizedException
		notConfirmed    *types.UserNotConfirmedException
		resetRequired   *types.PasswordResetRequiredException
		invalidParam    *types.InvalidParameterException
		invalidPassword *types.InvalidPasswordException
		poolNotFound    *types.ResourceNotFoundException
	)

	switch {
	case errors.As(err, &usernameExists), errors.As(err, &aliasExists):
		return KindDuplicate
	case errors.As(err, &userNotFound):
		return KindNotFound
	case errors.As(err, &codeMismatch):
		return KindInvalidCode
	case errors.As(err, &expiredCode):
		return KindExpiredCode
	case errors.As(err, &tooManyRequests), errors.As(err, &limitExceeded), errors.As(err, &tooManyFailed):
		return KindRateLimited
	case errors.As(err, &notAuthorized), errors.As(err, &notConfirmed), errors.As(err, &resetRequired):
		return KindNotAuthorized
	case errors.As(err, &invalidParam), errors.As(err, &invalidPassword), errors.As(err, &poolNotFound):
		return KindMisconfigured
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		util.Debug("unmapped provider error code",
			zap.String("code", apiErr.ErrorCode()))
	}
	return KindUnknown
}
