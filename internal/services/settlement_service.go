package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/shopspring/decimal"

	"github.com/peerpay/backend/internal/models"
)

// settlementQueueKey is the Redis list committed withdrawals are queued on
// before being dispatched as pacs.008 messages to the banking rails.
const settlementQueueKey = "settlement:withdrawals"

const settlementCurrency = "EUR"

// SettlementService turns committed withdrawals into ISO 20022 pacs.008
// messages. Queueing is asynchronous: the withdrawal commits regardless of
// settlement progress.
type SettlementService struct {
	redis     *redis.Client
	validator *ValidationHelper
}

// SettlementJob is one queued withdrawal awaiting dispatch.
type SettlementJob struct {
	TransactionID int       `json:"transaction_id" validate:"required"`
	AccountID     int       `json:"account_id" validate:"required"`
	AccountName   string    `json:"account_name" validate:"required"`
	Amount        string    `json:"amount" validate:"required"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewSettlementService(redisClient *redis.Client) *SettlementService {
	return &SettlementService{
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// EnqueueWithdrawal queues a committed withdrawal for settlement. Without
// Redis the queue is disabled and the withdrawal still stands.
func (s *SettlementService) EnqueueWithdrawal(ctx context.Context, tx *models.Transaction, account *models.Account) error {
	if s.redis == nil {
		return nil
	}

	job := SettlementJob{
		TransactionID: tx.ID,
		AccountID:     account.ID,
		AccountName:   account.Username,
		Amount:        tx.Amount.StringFixed(2),
		CreatedAt:     tx.CreatedAt,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := s.redis.LPush(ctx, settlementQueueKey, data).Err(); err != nil {
		log.Printf("[SETTLEMENT] Failed to enqueue transaction %d: %v", tx.ID, err)
		return err
	}

	log.Printf("[SETTLEMENT] Enqueued withdrawal transaction %d for settlement", tx.ID)
	return nil
}

// RunWorker drains the settlement queue until the context is canceled.
// Intended to run in its own goroutine from main.
func (s *SettlementService) RunWorker(ctx context.Context) {
	if s.redis == nil {
		log.Println("[SETTLEMENT] Redis unavailable, settlement worker disabled")
		return
	}

	log.Println("[SETTLEMENT] Settlement worker started")
	for {
		result, err := s.redis.BRPop(ctx, 5*time.Second, settlementQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[SETTLEMENT] Settlement worker stopped")
				return
			}
			log.Printf("[SETTLEMENT] Queue read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value].
		if len(result) != 2 {
			continue
		}

		var job SettlementJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("[SETTLEMENT] Dropping malformed job: %v", err)
			continue
		}

		if err := s.dispatch(job); err != nil {
			log.Printf("[SETTLEMENT] Dispatch failed for transaction %d: %v", job.TransactionID, err)
		}
	}
}

func (s *SettlementService) dispatch(job SettlementJob) error {
	doc, err := s.BuildPacs008(job)
	if err != nil {
		return err
	}

	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		return err
	}

	// TODO: replace the log sink with the clearing partner's endpoint once
	// credentials are provisioned.
	log.Printf("[SETTLEMENT] Dispatched pacs.008 for transaction %d (%d bytes)", job.TransactionID, len(xmlData))
	return nil
}

// ConvertWithdrawal previews the pacs.008 message for a withdrawal
// @Summary Convert withdrawal to ISO 20022
// @Description Build the pacs.008 XML a queued withdrawal would settle with
// @Tags settlement
// @Accept json
// @Produce json
// @Param request body SettlementJob true "Withdrawal to convert"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 400 {object} ErrorResponse
// @Router /settlement/convert [post]
func (s *SettlementService) ConvertWithdrawal(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var job SettlementJob
	if err := dec.Decode(&job); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&job); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	doc, err := s.BuildPacs008(job)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status":      "converted",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

// BuildPacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
// moving the withdrawn amount out to the account holder's bank.
func (s *SettlementService) BuildPacs008(job SettlementJob) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	amount, err := decimal.NewFromString(job.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement amount %q: %w", job.Amount, err)
	}

	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	endToEnd := fmt.Sprintf("WD-%d", job.TransactionID)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(settlementCurrency),
				Value: amount.InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(msgId)}[0],
					EndToEndId: common.Max35Text(endToEnd),
					TxId:       &[]common.Max35Text{common.Max35Text(endToEnd)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(settlementCurrency),
					Value: amount.InexactFloat64(),
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("PEERPAYX")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(job.AccountName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(fmt.Sprintf("ACCT-%d", job.AccountID)),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(job.AccountName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts an ISO 20022 document to an XML string
func (s *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
