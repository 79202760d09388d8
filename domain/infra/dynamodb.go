package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/food-donation-bot/domain/model"
)

const donationCounterName = "donation"

const (
	tableWaitInterval = 2 * time.Second // ポーリング間隔
	tableWaitTimeout  = time.Minute
)

type DynamoDBConfig struct {
	TablePrefix string
	// ローカルの DynamoDB に接続する場合のエンドポイント
	LocalEndpoint string
	Location      *time.Location
}

type DynamoDB struct {
	db                *dynamodb.Client
	ngoTableName      string
	donationTableName string
	counterTableName  string
	loc               *time.Location
	// テーブルが ACTIVE になるのを待つ間隔
	waitInterval      time.Duration
}

func NewDynamoDB(ctx context.Context, c DynamoDBConfig) (*DynamoDB, error) {
	prefix := c.TablePrefix
	if prefix == "" {
		prefix = "food_donation"
	}
	var db *dynamodb.Client
	if c.LocalEndpoint != "" {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(c.LocalEndpoint)
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	d := &DynamoDB{
		db:                db,
		ngoTableName:      prefix + "_ngos",
		donationTableName: prefix + "_donations",
		counterTableName:  prefix + "_counters",
		loc:               loc,
		waitInterval:      tableWaitInterval,
	}
	if c.LocalEndpoint != "" {
		if err := d.EnsureTables(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// EnsureTables はローカル実行用にテーブルを作成し、使えるようになるまで待つ
func (d *DynamoDB) EnsureTables(ctx context.Context) error {
	tables := []struct {
		name string
		attr []types.AttributeDefinition
		keys []types.KeySchemaElement
	}{
		{
			name: d.ngoTableName,
			attr: []types.AttributeDefinition{
				{AttributeName: aws.String("chat_id"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("registered_at"), AttributeType: types.ScalarAttributeTypeS},
			},
			keys: []types.KeySchemaElement{
				{AttributeName: aws.String("chat_id"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("registered_at"), KeyType: types.KeyTypeRange},
			},
		},
		{
			name: d.donationTableName,
			attr: []types.AttributeDefinition{
				{AttributeName: aws.String("donation_id"), AttributeType: types.ScalarAttributeTypeN},
			},
			keys: []types.KeySchemaElement{
				{AttributeName: aws.String("donation_id"), KeyType: types.KeyTypeHash},
			},
		},
		{
			name: d.counterTableName,
			attr: []types.AttributeDefinition{
				{AttributeName: aws.String("name"), AttributeType: types.ScalarAttributeTypeS},
			},
			keys: []types.KeySchemaElement{
				{AttributeName: aws.String("name"), KeyType: types.KeyTypeHash},
			},
		},
	}

	for _, t := range tables {
		_, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(t.name),
		})
		if err == nil {
			continue
		}
		_, err = d.db.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:            aws.String(t.name),
			AttributeDefinitions: t.attr,
			KeySchema:            t.keys,
			ProvisionedThroughput: &types.ProvisionedThroughput{
				ReadCapacityUnits:  aws.Int64(5),
				WriteCapacityUnits: aws.Int64(5),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s table: %v", t.name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(d.db, func(o *dynamodb.TableExistsWaiterOptions) {
			o.MinDelay = d.waitInterval
			o.MaxDelay = d.waitInterval
		})
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)}, tableWaitTimeout); err != nil {
			return fmt.Errorf("table %s did not become active: %w", t.name, err)
		}
		slog.Info("Table created", slog.String("table", t.name))
	}
	return nil
}

func (d *DynamoDB) SaveNGO(ctx context.Context, ngo *model.NGO) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.ngoTableName),
		Item: map[string]types.AttributeValue{
			"chat_id":       &types.AttributeValueMemberS{Value: ngo.ChatID},
			"registered_at": &types.AttributeValueMemberS{Value: ngo.RegisteredAt.Format(time.RFC3339Nano)},
			"name":          &types.AttributeValueMemberS{Value: ngo.Name},
			"location":      &types.AttributeValueMemberS{Value: ngo.Location},
			"contact":       &types.AttributeValueMemberS{Value: ngo.Contact},
		},
	}

	_, err := d.db.PutItem(ctx, input)
	return err
}

func (d *DynamoDB) GetNGOs(ctx context.Context) ([]model.NGO, error) {
	var ngos []model.NGO
	items, err := d.scan(ctx, d.ngoTableName)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		registeredAtStr := getStringValue(item, "registered_at")
		registeredAt, err := time.Parse(time.RFC3339Nano, registeredAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse registered_at (%s): %v", registeredAtStr, err)
		}
		ngos = append(ngos, model.NGO{
			Name:         getStringValue(item, "name"),
			Location:     getStringValue(item, "location"),
			Contact:      getStringValue(item, "contact"),
			ChatID:       getStringValue(item, "chat_id"),
			RegisteredAt: registeredAt.In(d.loc),
		})
	}
	// Scan は順序を保証しないので登録順に並べ直す
	sort.SliceStable(ngos, func(i, j int) bool {
		return ngos[i].RegisteredAt.Before(ngos[j].RegisteredAt)
	})
	return ngos, nil
}

// nextDonationID は連番カウンタをアトミックに進めて新しい寄付IDを返す
func (d *DynamoDB) nextDonationID(ctx context.Context) (int, error) {
	out, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.counterTableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: donationCounterName},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	seq, err := getNumberValue(out.Attributes, "seq")
	if err != nil {
		return 0, err
	}
	return seq - 1, nil
}

func (d *DynamoDB) SaveDonation(ctx context.Context, donation *model.Donation) (int, error) {
	id, err := d.nextDonationID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate donation id: %w", err)
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.donationTableName),
		Item: map[string]types.AttributeValue{
			"donation_id":   &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
			"food":          &types.AttributeValueMemberS{Value: donation.Food},
			"location":      &types.AttributeValueMemberS{Value: donation.Location},
			"donor_contact": &types.AttributeValueMemberS{Value: donation.DonorContact},
			"pickup_time":   &types.AttributeValueMemberS{Value: donation.PickupTime},
			"status":        &types.AttributeValueMemberS{Value: string(donation.Status)},
		},
	}
	if _, err := d.db.PutItem(ctx, input); err != nil {
		return 0, err
	}
	donation.ID = id
	return id, nil
}

func (d *DynamoDB) GetDonations(ctx context.Context) ([]model.Donation, error) {
	items, err := d.scan(ctx, d.donationTableName)
	if err != nil {
		return nil, err
	}
	donations := make([]model.Donation, 0, len(items))
	for _, item := range items {
		donation, err := donationFromItem(item)
		if err != nil {
			return nil, err
		}
		donations = append(donations, donation)
	}
	sort.Slice(donations, func(i, j int) bool {
		return donations[i].ID < donations[j].ID
	})
	return donations, nil
}

func (d *DynamoDB) GetDonation(ctx context.Context, id int) (*model.Donation, error) {
	if id < 0 {
		return nil, model.ErrDonationNotFound
	}
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.donationTableName),
		Key: map[string]types.AttributeValue{
			"donation_id": &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, model.ErrDonationNotFound
	}
	donation, err := donationFromItem(result.Item)
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

func (d *DynamoDB) ClaimDonation(ctx context.Context, id int, claimant string) error {
	if id < 0 {
		return model.ErrDonationNotFound
	}
	_, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.donationTableName),
		Key: map[string]types.AttributeValue{
			"donation_id": &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
		},
		UpdateExpression:    aws.String("SET #status = :claimed"),
		ConditionExpression: aws.String("attribute_exists(donation_id) AND #status = :available"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":claimed":   &types.AttributeValueMemberS{Value: string(model.ClaimedBy(claimant))},
			":available": &types.AttributeValueMemberS{Value: string(model.StatusAvailable)},
		},
	})
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return err
	}
	current, err := d.GetDonation(ctx, id)
	if err != nil {
		return err
	}
	return &model.AlreadyClaimedError{ID: id, Status: current.Status}
}

func (d *DynamoDB) Close() error {
	return nil
}

func (d *DynamoDB) scan(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func donationFromItem(item map[string]types.AttributeValue) (model.Donation, error) {
	id, err := getNumberValue(item, "donation_id")
	if err != nil {
		return model.Donation{}, err
	}
	return model.Donation{
		ID:           id,
		Food:         getStringValue(item, "food"),
		Location:     getStringValue(item, "location"),
		DonorContact: getStringValue(item, "donor_contact"),
		PickupTime:   getStringValue(item, "pickup_time"),
		Status:       model.DonationStatus(getStringValue(item, "status")),
	}, nil
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)

	}
	return 0, fmt.Errorf("failed to parse %s", key)
}
