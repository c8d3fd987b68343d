package main

import (
	"context"

	"homewatt/internal/cloud"
	"homewatt/internal/config"
)

func newSNSNotifier() (*cloud.SNSClient, error) {
	return cloud.NewSNSClient(context.Background(), config.AWSRegion(), config.SNSTopicArn())
}
