package main

import (
	"log"

	"fiscaal-rapportage/internal/api"
	"fiscaal-rapportage/internal/config"
	"fiscaal-rapportage/internal/database"
	"fiscaal-rapportage/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize MongoDB client (optional - falls back to in-memory storage)
	var store services.DossierStore
	var jobArchive services.JobArchive
	if cfg.MongoDB.URI != "" || cfg.MongoDB.Host != "" {
		log.Printf("Initializing MongoDB connection (Host: %s, Port: %s, Database: %s)",
			cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
		mongoClient, err := database.NewMongoDBClient(cfg.MongoDB)
		if err != nil {
			log.Printf("WARNING: Failed to connect to MongoDB (using in-memory storage): %v", err)
		} else {
			log.Printf("Successfully connected to MongoDB")
			defer mongoClient.Close()
			store = mongoClient
			jobArchive = mongoClient
		}
	} else {
		log.Printf("MongoDB not configured (Host and URI are empty), using in-memory storage")
	}
	if store == nil {
		store = services.NewMemStore()
	}

	// Initialize services
	aiService := services.NewAIService(cfg.OpenAI)
	workflowService := services.NewWorkflowService(store, aiService)
	expressService := services.NewExpressService(workflowService, store)
	adjustmentService := services.NewAdjustmentService(workflowService, store, aiService, "schemas/adjustment_schema.json")
	exportService := services.NewExportService(store, "schemas/dossier_import_schema.json")
	pdfService := services.NewPDFService()

	// Email delivery is optional
	var emailService *services.EmailService
	if cfg.Email.APIKey != "" {
		emailService = services.NewEmailService(cfg.Email)
	} else {
		log.Printf("SendGrid API key not configured, report email delivery disabled")
	}

	// Start the retention sweep
	retentionService := services.NewRetentionService(store, expressService, jobArchive, cfg.Retention)
	if err := retentionService.Start(); err != nil {
		log.Fatalf("Failed to start retention sweep: %v", err)
	}
	defer retentionService.Stop()

	// Initialize handlers
	handlers := api.NewHandlers(store, workflowService, expressService, adjustmentService, exportService, pdfService, emailService)

	// Setup routes
	router := api.SetupRoutes(handlers)

	// Start server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
